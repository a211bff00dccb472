package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"InactivityBot/configuration"
	"InactivityBot/errorhandler"
	"InactivityBot/models"
	"InactivityBot/services"
	"InactivityBot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlatform struct {
	mu         sync.Mutex
	members    map[string][]*discordgo.Member
	fetchCalls int
}

func (p *stubPlatform) GuildMembers(_ context.Context, guildID string) ([]*discordgo.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchCalls++
	return p.members[guildID], nil
}

func (p *stubPlatform) GuildName(guildID string) string      { return guildID }
func (p *stubPlatform) GuildMemberCount(string) (int, error) { return 0, nil }
func (p *stubPlatform) SetWatchingStatus(string) error       { return nil }
func (p *stubPlatform) SendDirectMessage(context.Context, string, string) error {
	return nil
}
func (p *stubPlatform) KickMember(context.Context, string, string, string) error {
	return nil
}
func (p *stubPlatform) SendChannelEmbed(context.Context, string, *discordgo.MessageEmbed) error {
	return nil
}

type memoryStore struct {
	mu      sync.Mutex
	records map[string]time.Time
}

func (s *memoryStore) Touch(_ context.Context, userID, guildID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID+"/"+guildID] = at
	return nil
}

func (s *memoryStore) CreateIfAbsent(_ context.Context, userID, guildID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[userID+"/"+guildID]; ok {
		return false, nil
	}
	s.records[userID+"/"+guildID] = at
	return true, nil
}

func (s *memoryStore) Find(_ context.Context, userID, guildID string) (*models.UserActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.records[userID+"/"+guildID]
	if !ok {
		return nil, nil
	}
	return &models.UserActivity{UserID: userID, GuildID: guildID, LastActivity: at}, nil
}

func (s *memoryStore) Delete(_ context.Context, userID, guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID+"/"+guildID)
	return nil
}

func (s *memoryStore) CountByGuild(context.Context, string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.records)), nil
}

// blockingStore holds every Touch until release is closed.
type blockingStore struct {
	*memoryStore
	release chan struct{}
}

func (s *blockingStore) Touch(ctx context.Context, userID, guildID string, at time.Time) error {
	<-s.release
	return s.memoryStore.Touch(ctx, userID, guildID, at)
}

func (s *blockingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func newTestBot(platform *stubPlatform, store *memoryStore) (*Bot, *int) {
	cfg := &configuration.Config{
		Servers: []models.ServerConfig{
			{ID: "active", Status: true, Duration: 7, NonSafeRoles: []string{"member"}},
			{ID: "disabled", Status: false, Duration: 7, NonSafeRoles: []string{"member"}},
		},
	}
	policy := utils.RetryPolicy{MaxAttempts: 1}
	presenceCalls := 0

	return &Bot{
		config:   cfg,
		tracker:  services.NewTracker(store, cfg),
		syncer:   services.NewSyncer(platform, store, cfg, policy),
		presence: func() { presenceCalls++ },
	}, &presenceCalls
}

func TestOnGuildCreateSyncsConfiguredGuild(t *testing.T) {
	t.Parallel()

	platform := &stubPlatform{members: map[string][]*discordgo.Member{
		"active": {
			{User: &discordgo.User{ID: "1"}, Roles: []string{"member"}},
			{User: &discordgo.User{ID: "2"}, Roles: []string{"other"}},
		},
	}}
	store := &memoryStore{records: make(map[string]time.Time)}
	b, presenceCalls := newTestBot(platform, store)

	b.onGuildCreate(context.Background(), &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "active", Name: "Active"}})

	assert.Len(t, store.records, 1)
	assert.Contains(t, store.records, "1/active")
	assert.Equal(t, 1, *presenceCalls)
}

func TestOnGuildCreateIgnoresUnconfiguredGuild(t *testing.T) {
	t.Parallel()

	platform := &stubPlatform{members: map[string][]*discordgo.Member{}}
	store := &memoryStore{records: make(map[string]time.Time)}
	b, presenceCalls := newTestBot(platform, store)

	b.onGuildCreate(context.Background(), &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "disabled"}})
	b.onGuildCreate(context.Background(), &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "unknown"}})

	assert.Zero(t, platform.fetchCalls)
	assert.Zero(t, *presenceCalls)
}

func TestActivityHandlersDoNotWaitForStore(t *testing.T) {
	t.Parallel()

	store := &blockingStore{
		memoryStore: &memoryStore{records: make(map[string]time.Time)},
		release:     make(chan struct{}),
	}
	b, _ := newTestBot(&stubPlatform{}, store.memoryStore)
	b.tracker = services.NewTracker(store, b.config)

	done := make(chan struct{})
	go func() {
		b.onMessageCreate(context.Background(), &discordgo.MessageCreate{Message: &discordgo.Message{
			GuildID: "active",
			Author:  &discordgo.User{ID: "1"},
		}})
		b.onMemberAdd(context.Background(), &discordgo.GuildMemberAdd{Member: &discordgo.Member{
			GuildID: "active",
			User:    &discordgo.User{ID: "2"},
			Roles:   []string{"member"},
		}})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event handlers blocked on the activity store")
	}
	assert.Zero(t, store.count())

	close(store.release)
	assert.Eventually(t, func() bool { return store.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestIsInitialGuild(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(&stubPlatform{}, &memoryStore{records: make(map[string]time.Time)})
	b.initialGuilds.Store("ready-guild", struct{}{})

	assert.True(t, b.isInitialGuild("ready-guild"))
	assert.False(t, b.isInitialGuild("new-guild"))
	assert.True(t, b.isInitialGuild("new-guild"))
}

func TestGuildRejoinAfterRemovalIsNew(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(&stubPlatform{}, &memoryStore{records: make(map[string]time.Time)})
	b.initialGuilds.Store("g1", struct{}{})

	b.onGuildDelete(&discordgo.GuildDelete{Guild: &discordgo.Guild{ID: "g1"}})
	assert.False(t, b.isInitialGuild("g1"))

	assert.False(t, b.isInitialGuild("g2"))
	b.onGuildDelete(&discordgo.GuildDelete{Guild: &discordgo.Guild{ID: "g2"}})
	assert.False(t, b.isInitialGuild("g2"))
}

func TestGuildOutageKeepsGuildKnown(t *testing.T) {
	t.Parallel()

	b, _ := newTestBot(&stubPlatform{}, &memoryStore{records: make(map[string]time.Time)})
	b.initialGuilds.Store("g1", struct{}{})

	b.onGuildDelete(&discordgo.GuildDelete{Guild: &discordgo.Guild{ID: "g1", Unavailable: true}})
	b.onGuildDelete(&discordgo.GuildDelete{})
	assert.True(t, b.isInitialGuild("g1"))
}

func TestRejoinedGuildIsSynced(t *testing.T) {
	t.Parallel()

	platform := &stubPlatform{members: map[string][]*discordgo.Member{
		"active": {{User: &discordgo.User{ID: "1"}, Roles: []string{"member"}}},
	}}
	store := &memoryStore{records: make(map[string]time.Time)}
	b, presenceCalls := newTestBot(platform, store)
	b.initialGuilds.Store("active", struct{}{})

	b.onGuildDelete(&discordgo.GuildDelete{Guild: &discordgo.Guild{ID: "active"}})
	require.False(t, b.isInitialGuild("active"))
	b.onGuildCreate(context.Background(), &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: "active"}})

	assert.Contains(t, store.records, "1/active")
	assert.Equal(t, 1, *presenceCalls)
}

func TestSafelyRecoversPanics(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		safely("test", func() { panic("boom") })
	})
}

// The Discord endpoints are package variables, so the REST tests below run
// sequentially against one fake API.
func TestSessionPlatformREST(t *testing.T) {
	const total = membersPageSize + 5
	var afterValues []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/guilds/g/members":
			after := r.URL.Query().Get("after")
			afterValues = append(afterValues, after)

			start := 0
			if after != "" {
				fmt.Sscanf(after, "%d", &start)
			}
			end := start + membersPageSize
			if end > total {
				end = total
			}

			page := make([]map[string]any, 0, end-start)
			for id := start + 1; id <= end; id++ {
				page = append(page, map[string]any{
					"user":  map[string]any{"id": fmt.Sprint(id), "username": "u"},
					"roles": []string{"member"},
				})
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(page)

		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/guilds/g/members/"):
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message": "Missing Permissions", "code": 50013}`))

		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	originalGuilds := discordgo.EndpointGuilds
	discordgo.EndpointGuilds = server.URL + "/guilds/"
	defer func() { discordgo.EndpointGuilds = originalGuilds }()

	session, err := NewSession("token")
	require.NoError(t, err)
	session.Client = server.Client()

	platform := NewSessionPlatform(session, 1000, 10)

	members, err := platform.GuildMembers(context.Background(), "g")
	require.NoError(t, err)
	assert.Len(t, members, total)
	assert.Equal(t, []string{"", fmt.Sprint(membersPageSize)}, afterValues)
	assert.Equal(t, "g", members[0].GuildID)

	err = platform.KickMember(context.Background(), "g", "1", "Inactivity: 8 days without a message")
	require.Error(t, err)
	assert.False(t, errorhandler.IsRetryable(err))
}
