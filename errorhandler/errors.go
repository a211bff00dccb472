package errorhandler

import (
	"errors"
	"fmt"
	"net/http"

	"InactivityBot/logger"

	"github.com/bwmarrin/discordgo"
)

type ErrorCategory int

const (
	DatabaseError ErrorCategory = iota
	DiscordError
	PermissionError
	ConfigurationError
	UnknownError
)

func (c ErrorCategory) String() string {
	switch c {
	case DatabaseError:
		return "database"
	case DiscordError:
		return "discord"
	case PermissionError:
		return "permission"
	case ConfigurationError:
		return "configuration"
	default:
		return "unknown"
	}
}

type CustomError struct {
	Category     ErrorCategory
	OriginalErr  error
	AdminMessage string
}

func (e *CustomError) Error() string {
	return e.AdminMessage
}

func (e *CustomError) Unwrap() error {
	return e.OriginalErr
}

func newError(category ErrorCategory, err error, context string) *CustomError {
	return &CustomError{
		Category:     category,
		OriginalErr:  err,
		AdminMessage: fmt.Sprintf("%s: %v", context, err),
	}
}

func NewDatabaseError(err error, context string) *CustomError {
	return newError(DatabaseError, err, fmt.Sprintf("Database error: %s", context))
}

// NewDiscordError classifies a Discord API failure; missing permissions and
// unknown entities become PermissionError.
func NewDiscordError(err error, context string) *CustomError {
	category := DiscordError
	if isPermanentRESTError(err) {
		category = PermissionError
	}
	return newError(category, err, fmt.Sprintf("Discord error: %s", context))
}

func NewConfigurationError(err error, context string) *CustomError {
	return newError(ConfigurationError, err, fmt.Sprintf("Configuration error: %s", context))
}

// HandleError logs err with its category and returns the category.
func HandleError(err error) ErrorCategory {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		logger.Log.WithError(customErr.OriginalErr).
			WithField("category", customErr.Category.String()).
			Error(customErr.AdminMessage)
		return customErr.Category
	}

	logger.Log.WithError(err).Error("Unexpected error occurred")
	return UnknownError
}

// IsRetryable reports whether repeating the failed operation may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var customErr *CustomError
	if errors.As(err, &customErr) {
		switch customErr.Category {
		case PermissionError, ConfigurationError:
			return false
		}
	}

	return !isPermanentRESTError(err)
}

func isPermanentRESTError(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return false
	}

	switch restErr.Response.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
