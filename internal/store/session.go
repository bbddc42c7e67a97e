package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/abdifahadi/wamedia-bot/internal/types"
)

// SessionStore keeps per-user interaction state in Redis. Every value is a
// whole SessionState JSON blob overwritten on each mode transition, so the
// per-key write is naturally atomic; concurrent messages from one user are
// last-write-wins.
type SessionStore struct {
	redis *redis.Client
}

func NewSessionStore(redisClient *redis.Client) *SessionStore {
	return &SessionStore{redis: redisClient}
}

// Key patterns
const (
	sessionKey = "session:user:%s" // session:user:<userID>
	userKey    = "user:profile:%s" // user:profile:<userID>
)

// Expirations
const (
	// Sessions are short-lived; a user who walks away mid-flow drops back
	// to idle rather than replying to a week-old quality menu.
	SessionTTL = time.Hour
	UserTTL    = 90 * 24 * time.Hour
)

// Get returns the user's session state, or an idle state when none is
// stored or the stored blob cannot be decoded.
func (s *SessionStore) Get(ctx context.Context, userID string) (types.SessionState, error) {
	idle := types.SessionState{UserID: userID, Mode: types.ModeIdle}

	cached, err := s.redis.Get(ctx, fmt.Sprintf(sessionKey, userID)).Result()
	if err == redis.Nil {
		return idle, nil
	}
	if err != nil {
		return idle, fmt.Errorf("session get: %w", err)
	}

	var state types.SessionState
	if err := json.Unmarshal([]byte(cached), &state); err != nil {
		return idle, nil
	}
	return state, nil
}

// Set overwrites the user's session state.
func (s *SessionStore) Set(ctx context.Context, state types.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := s.redis.Set(ctx, fmt.Sprintf(sessionKey, state.UserID), data, SessionTTL).Err(); err != nil {
		return fmt.Errorf("session set: %w", err)
	}
	return nil
}

// Clear resets the user to idle. Deleting the key and an absent key are
// the same outcome.
func (s *SessionStore) Clear(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, fmt.Sprintf(sessionKey, userID)).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}

// UserProfile records who has talked to the bot.
type UserProfile struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// SaveUser upserts the sender's profile, preserving FirstSeen.
func (s *SessionStore) SaveUser(ctx context.Context, userID, name string) error {
	key := fmt.Sprintf(userKey, userID)
	now := time.Now().UTC()

	profile := UserProfile{UserID: userID, Name: name, FirstSeen: now, LastSeen: now}
	if cached, err := s.redis.Get(ctx, key).Result(); err == nil {
		var existing UserProfile
		if json.Unmarshal([]byte(cached), &existing) == nil && !existing.FirstSeen.IsZero() {
			profile.FirstSeen = existing.FirstSeen
		}
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("user encode: %w", err)
	}
	if err := s.redis.Set(ctx, key, data, UserTTL).Err(); err != nil {
		return fmt.Errorf("user save: %w", err)
	}
	return nil
}

// GetUser returns a stored profile and whether it existed.
func (s *SessionStore) GetUser(ctx context.Context, userID string) (UserProfile, bool, error) {
	cached, err := s.redis.Get(ctx, fmt.Sprintf(userKey, userID)).Result()
	if err == redis.Nil {
		return UserProfile{}, false, nil
	}
	if err != nil {
		return UserProfile{}, false, fmt.Errorf("user get: %w", err)
	}

	var profile UserProfile
	if err := json.Unmarshal([]byte(cached), &profile); err != nil {
		return UserProfile{}, false, nil
	}
	return profile, true, nil
}
