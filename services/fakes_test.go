package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"InactivityBot/models"
	"InactivityBot/utils"

	"github.com/bwmarrin/discordgo"
)

var (
	errUnavailable = errors.New("discord unavailable")
	errStore       = errors.New("database unavailable")
)

var testPolicy = utils.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}

type fakePlatform struct {
	mu sync.Mutex

	members    map[string][]*discordgo.Member
	fetchErrs  map[string][]error
	fetchCalls map[string]int
	counts     map[string]int

	dmErr   error
	dms     map[string]string
	kickErr error
	kicks   int
	kicked  []string
	reasons []string

	embedErr error
	embeds   []*discordgo.MessageEmbed
	channels []string

	status string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		members:    make(map[string][]*discordgo.Member),
		fetchErrs:  make(map[string][]error),
		fetchCalls: make(map[string]int),
		counts:     make(map[string]int),
		dms:        make(map[string]string),
	}
}

func (f *fakePlatform) GuildMembers(_ context.Context, guildID string) ([]*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetchCalls[guildID]++
	if errs := f.fetchErrs[guildID]; len(errs) > 0 {
		err := errs[0]
		if len(errs) > 1 {
			f.fetchErrs[guildID] = errs[1:]
		}
		if err != nil {
			return nil, err
		}
	}
	return f.members[guildID], nil
}

func (f *fakePlatform) GuildName(guildID string) string {
	return "Guild " + guildID
}

func (f *fakePlatform) GuildMemberCount(guildID string) (int, error) {
	count, ok := f.counts[guildID]
	if !ok {
		return 0, errUnavailable
	}
	return count, nil
}

func (f *fakePlatform) SendDirectMessage(_ context.Context, userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dmErr != nil {
		return f.dmErr
	}
	f.dms[userID] = content
	return nil
}

func (f *fakePlatform) KickMember(_ context.Context, guildID, userID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicks++
	if f.kickErr != nil {
		return f.kickErr
	}
	f.kicked = append(f.kicked, guildID+"/"+userID)
	f.reasons = append(f.reasons, reason)
	return nil
}

func (f *fakePlatform) SendChannelEmbed(_ context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.embedErr != nil {
		return f.embedErr
	}
	f.channels = append(f.channels, channelID)
	f.embeds = append(f.embeds, embed)
	return nil
}

func (f *fakePlatform) SetWatchingStatus(name string) error {
	f.status = name
	return nil
}

type storeKey struct {
	userID  string
	guildID string
}

type fakeStore struct {
	mu        sync.Mutex
	records   map[storeKey]time.Time
	touchErr  error
	createErr error
	findErrs  map[string]error
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:  make(map[storeKey]time.Time),
		findErrs: make(map[string]error),
	}
}

func (s *fakeStore) Touch(_ context.Context, userID, guildID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.touchErr != nil {
		return s.touchErr
	}
	s.records[storeKey{userID, guildID}] = at
	return nil
}

func (s *fakeStore) CreateIfAbsent(_ context.Context, userID, guildID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return false, s.createErr
	}
	key := storeKey{userID, guildID}
	if _, ok := s.records[key]; ok {
		return false, nil
	}
	s.records[key] = at
	return true, nil
}

func (s *fakeStore) Find(_ context.Context, userID, guildID string) (*models.UserActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.findErrs[userID]; err != nil {
		return nil, err
	}
	at, ok := s.records[storeKey{userID, guildID}]
	if !ok {
		return nil, nil
	}
	return &models.UserActivity{UserID: userID, GuildID: guildID, LastActivity: at}, nil
}

func (s *fakeStore) Delete(_ context.Context, userID, guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.records, storeKey{userID, guildID})
	return nil
}

func (s *fakeStore) CountByGuild(_ context.Context, guildID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for key := range s.records {
		if key.guildID == guildID {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) get(userID, guildID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.records[storeKey{userID, guildID}]
	return at, ok
}

func (s *fakeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type staticServers []models.ServerConfig

func (s staticServers) ActiveServers() []models.ServerConfig {
	var active []models.ServerConfig
	for _, cfg := range s {
		if cfg.Status {
			active = append(active, cfg)
		}
	}
	return active
}

func (s staticServers) ActiveServer(guildID string) (models.ServerConfig, bool) {
	for _, cfg := range s {
		if cfg.ID == guildID {
			return cfg, cfg.Status
		}
	}
	return models.ServerConfig{}, false
}

func testServer(id string) models.ServerConfig {
	return models.ServerConfig{
		ID:           id,
		Status:       true,
		Duration:     5,
		LogChannelID: "log-" + id,
		SafeRoles:    []string{"safe1", "safe2"},
		NonSafeRoles: []string{"member"},
	}
}

func newMember(guildID, userID string, roles ...string) *discordgo.Member {
	return &discordgo.Member{
		GuildID: guildID,
		User:    &discordgo.User{ID: userID, Username: "user" + userID, Discriminator: "0"},
		Roles:   roles,
	}
}

func newBot(guildID, userID string, roles ...string) *discordgo.Member {
	member := newMember(guildID, userID, roles...)
	member.User.Bot = true
	return member
}

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}
