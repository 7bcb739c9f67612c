package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
)

// A pair scope is two tickers (or unit prefixes) joined by a dash.
var scopeRe = regexp.MustCompile(`^[A-Z0-9]{1,64}-[A-Z0-9]{1,64}$`)

const maxReasonLen = 256

type Store struct {
	client redis.Cmdable
}

func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Store{client: client}, nil
}

// NormalizeScope upper-cases scope and checks its shape.
func NormalizeScope(scope string) (string, error) {
	s := strings.TrimSpace(scope)
	if strings.EqualFold(s, GlobalScope) {
		return GlobalScope, nil
	}
	s = strings.ToUpper(s)
	if !scopeRe.MatchString(s) {
		return "", fmt.Errorf("%w: invalid halt scope %q", apperr.ErrInvalidParameters, scope)
	}
	return s, nil
}

func (s *Store) Upsert(ctx context.Context, scope string, active bool, reason string) (*Halt, error) {
	scope, err := NormalizeScope(scope)
	if err != nil {
		return nil, err
	}
	if len(reason) > maxReasonLen {
		return nil, fmt.Errorf("%w: reason longer than %d bytes", apperr.ErrInvalidParameters, maxReasonLen)
	}

	h := &Halt{Scope: scope, Active: active, Reason: reason, UpdatedAt: time.Now().UTC()}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("marshal halt: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, haltKey(scope), b, 0)
	pipe.SAdd(ctx, constants.RedisHaltIndex, scope)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: upsert halt: %v", apperr.ErrUpstreamUnavailable, err)
	}
	return h, nil
}

func (s *Store) Get(ctx context.Context, scope string) (*Halt, error) {
	scope, err := NormalizeScope(scope)
	if err != nil {
		return nil, err
	}

	val, err := s.client.Get(ctx, haltKey(scope)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get halt: %v", apperr.ErrUpstreamUnavailable, err)
	}

	var h Halt
	if err := json.Unmarshal([]byte(val), &h); err != nil {
		return nil, fmt.Errorf("unmarshal halt: %w", err)
	}
	return &h, nil
}

func (s *Store) List(ctx context.Context) ([]*Halt, error) {
	scopes, err := s.client.SMembers(ctx, constants.RedisHaltIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list halts index: %v", apperr.ErrUpstreamUnavailable, err)
	}

	keys := make([]string, 0, len(scopes))
	for _, sc := range scopes {
		if _, err := NormalizeScope(sc); err != nil {
			continue
		}
		keys = append(keys, haltKey(sc))
	}
	return s.load(ctx, keys...)
}

func (s *Store) Delete(ctx context.Context, scope string) error {
	scope, err := NormalizeScope(scope)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, haltKey(scope))
	pipe.SRem(ctx, constants.RedisHaltIndex, scope)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: delete halt: %v", apperr.ErrUpstreamUnavailable, err)
	}
	return nil
}

// Check fails when the global switch or either orientation of pair is
// active. Pair is "FROM-TO" as recorded on swap events.
func (s *Store) Check(ctx context.Context, pair string) error {
	keys := []string{haltKey(GlobalScope)}
	if p, err := NormalizeScope(pair); err == nil && p != GlobalScope {
		keys = append(keys, haltKey(p))
		if a, b, ok := strings.Cut(p, "-"); ok {
			keys = append(keys, haltKey(b+"-"+a))
		}
	}

	halts, err := s.load(ctx, keys...)
	if err != nil {
		return err
	}
	for _, h := range halts {
		if !h.Active {
			continue
		}
		msg := fmt.Sprintf("trading halted (%s)", h.Scope)
		if h.Reason != "" {
			msg += ": " + h.Reason
		}
		return fmt.Errorf("%w: %s", apperr.ErrInvalidParameters, msg)
	}
	return nil
}

func (s *Store) load(ctx context.Context, keys ...string) ([]*Halt, error) {
	if len(keys) == 0 {
		return []*Halt{}, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: mget halts: %v", apperr.ErrUpstreamUnavailable, err)
	}

	out := make([]*Halt, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var h Halt
		if err := json.Unmarshal([]byte(str), &h); err != nil {
			continue
		}
		out = append(out, &h)
	}
	return out, nil
}

func haltKey(scope string) string {
	return constants.RedisHaltPrefix + scope
}
