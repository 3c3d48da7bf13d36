package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/birddigital/voice-session-gateway/pkg/directory"
)

// Redis key layout
const (
	sessionKeyPrefix = "voice:session:"
	sessionIndexKey  = "voice:sessions"

	fieldCallerPhone    = "caller_phone"
	fieldCustomer       = "customer"
	fieldGreetingIssued = "greeting_issued"
	fieldState          = "state"
	fieldNoInput        = "no_input"
	fieldCreatedAt      = "created_at"
	fieldUpdatedAt      = "updated_at"
)

// RedisStore shares call sessions between gateway instances. Each session is a
// hash; first-write-wins fields use HSETNX so Redis serializes racing writers.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewRedisStore creates a Redis-backed store; ttl bounds idle sessions
func NewRedisStore(rdb *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, logger: logger}
}

func sessionKey(callID string) string {
	return sessionKeyPrefix + callID
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

// touch refreshes the TTL and updated_at inside a pipeline
func (s *RedisStore) touch(ctx context.Context, pipe redis.Pipeliner, callID string) {
	key := sessionKey(callID)
	pipe.HSet(ctx, key, fieldUpdatedAt, time.Now().UnixMilli())
	pipe.SAdd(ctx, sessionIndexKey, callID)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

// GetOrCreate returns the session, creating it with defaults if absent
func (s *RedisStore) GetOrCreate(ctx context.Context, callID string) (CallSession, bool, error) {
	key := sessionKey(callID)
	now := time.Now().UnixMilli()

	var created *redis.BoolCmd
	var fields *redis.StringStringMapCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.HSetNX(ctx, key, fieldCreatedAt, now)
		pipe.HSetNX(ctx, key, fieldState, string(StateNew))
		pipe.HSetNX(ctx, key, fieldUpdatedAt, now)
		pipe.SAdd(ctx, sessionIndexKey, callID)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		fields = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return CallSession{}, false, unavailable("get_or_create", err)
	}

	sess, err := decodeSession(callID, fields.Val())
	if err != nil {
		return CallSession{}, false, err
	}
	return sess, created.Val(), nil
}

// setOnce writes a field only if it does not exist yet
func (s *RedisStore) setOnce(ctx context.Context, op, callID, field string, value interface{}) (bool, error) {
	var set *redis.BoolCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		set = pipe.HSetNX(ctx, sessionKey(callID), field, value)
		s.touch(ctx, pipe, callID)
		return nil
	})
	if err != nil {
		return false, unavailable(op, err)
	}
	return set.Val(), nil
}

// MarkGreetingIssued flips the greeting flag once
func (s *RedisStore) MarkGreetingIssued(ctx context.Context, callID string) (bool, error) {
	return s.setOnce(ctx, "mark_greeting_issued", callID, fieldGreetingIssued, "1")
}

// SetCallerPhone keeps the first non-empty phone
func (s *RedisStore) SetCallerPhone(ctx context.Context, callID, phone string) error {
	if phone == "" {
		return nil
	}
	_, err := s.setOnce(ctx, "set_caller_phone", callID, fieldCallerPhone, phone)
	return err
}

// SetCustomer keeps the first resolved customer
func (s *RedisStore) SetCustomer(ctx context.Context, callID string, customer *directory.Customer) error {
	if customer == nil {
		return nil
	}
	raw, err := json.Marshal(customer)
	if err != nil {
		return fmt.Errorf("failed to encode customer: %w", err)
	}
	_, err = s.setOnce(ctx, "set_customer", callID, fieldCustomer, raw)
	return err
}

// SetState records the call state
func (s *RedisStore) SetState(ctx context.Context, callID string, state CallState) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey(callID), fieldState, string(state))
		s.touch(ctx, pipe, callID)
		return nil
	})
	if err != nil {
		return unavailable("set_state", err)
	}
	return nil
}

// IncrementNoInput bumps the no-input counter
func (s *RedisStore) IncrementNoInput(ctx context.Context, callID string) (int, error) {
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, sessionKey(callID), fieldNoInput, 1)
		s.touch(ctx, pipe, callID)
		return nil
	})
	if err != nil {
		return 0, unavailable("increment_no_input", err)
	}
	return int(incr.Val()), nil
}

// Evict deletes the session hash; missing keys are fine
func (s *RedisStore) Evict(ctx context.Context, callID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessionKey(callID))
	pipe.SRem(ctx, sessionIndexKey, callID)
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable("evict", err)
	}

	s.logger.WithFields(logrus.Fields{
		"component": "SessionStore",
		"call_sid":  callID,
	}).Debug("Evicted call session")
	return nil
}

// Count returns the number of indexed sessions. Entries whose hash expired are
// pruned from the index as a side effect.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	ids, err := s.rdb.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return 0, unavailable("count", err)
	}

	live := 0
	for _, id := range ids {
		n, err := s.rdb.Exists(ctx, sessionKey(id)).Result()
		if err != nil {
			return 0, unavailable("count", err)
		}
		if n == 0 {
			s.rdb.SRem(ctx, sessionIndexKey, id)
			continue
		}
		live++
	}
	return live, nil
}

func decodeSession(callID string, fields map[string]string) (CallSession, error) {
	sess := CallSession{
		CallID:         callID,
		CallerPhone:    fields[fieldCallerPhone],
		GreetingIssued: fields[fieldGreetingIssued] == "1",
		State:          CallState(fields[fieldState]),
	}
	if sess.State == "" {
		sess.State = StateNew
	}

	if raw := fields[fieldCustomer]; raw != "" {
		var c directory.Customer
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return CallSession{}, fmt.Errorf("invalid cached customer for %s: %w", callID, err)
		}
		sess.Customer = &c
	}
	if raw := fields[fieldNoInput]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return CallSession{}, fmt.Errorf("invalid no_input count for %s: %w", callID, err)
		}
		sess.NoInputCount = n
	}
	sess.CreatedAt = millis(fields[fieldCreatedAt])
	sess.UpdatedAt = millis(fields[fieldUpdatedAt])

	return sess, nil
}

func millis(raw string) time.Time {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
