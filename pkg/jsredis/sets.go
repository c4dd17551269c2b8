package jsredis

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
)

// Sets manages membership of native sets with an emulated per-member expiry.
//
// An expiring member has a shadow record, written through Items, holding its
// Deadline. The shadow record is the only authority on expiry: a member
// without one never expires. Deadlines are checked lazily by IsMember,
// Members and Purge; nothing sweeps in the background, so an expired member
// stays in the native set until one of those runs.
//
// Add writes the shadow record before the member and the two writes are not
// atomic. A failure in between leaves either an orphan shadow record, which
// is harmless, or a member without one, which is then permanent. Concurrent
// checks of the same expired member may both run the cleanup; every step is
// idempotent.
type Sets struct {
	items *Items
}

// NewSets creates a membership manager that writes shadow records through items
func NewSets(items *Items) *Sets {
	return &Sets{items: items}
}

func (s *Sets) token(setKey string, member any) (string, error) {
	token, err := Token(s.items.codec, member)
	if err != nil {
		return "", &EncodingError{Key: setKey, Err: err}
	}
	return token, nil
}

// Add adds member to the set at setKey. With an expiration the member is
// considered gone once now+exp has passed; only the first expiration is used.
// Re-adding without an expiration leaves an existing deadline in place.
func (s *Sets) Add(ctx context.Context, setKey string, member any, exp ...Expiration) error {
	token, err := s.token(setKey, member)
	if err != nil {
		return err
	}

	if len(exp) > 0 {
		if err := exp[0].validate(); err != nil {
			return &EncodingError{Key: setKey, Err: err}
		}
		deadline := Deadline{exp[0].after(s.items.now())}
		if err := s.items.Set(ctx, ShadowKey(setKey, token), deadline); err != nil {
			return err
		}
		s.items.logger.Debugw("Redis member expiration set",
			"set", setKey,
			"member_type", fmt.Sprintf("%T", member),
			"expires_at", deadline.Time,
		)
	}

	if _, err := s.items.storeFor(ctx).SAdd(ctx, setKey, []byte(token)); err != nil {
		return s.items.storeError(ctx, "sadd", setKey, err)
	}

	s.items.logger.Debugw("Redis member added", "set", setKey, "member_type", fmt.Sprintf("%T", member))
	return nil
}

// IsMember reports whether member is in the set at setKey. A member whose
// deadline has passed is removed along with its shadow record and reported
// absent; a failure during that cleanup fails the whole check.
func (s *Sets) IsMember(ctx context.Context, setKey string, member any) (bool, error) {
	token, err := s.token(setKey, member)
	if err != nil {
		return false, err
	}

	expired, err := s.expireIfDue(ctx, setKey, token)
	if err != nil || expired {
		return false, err
	}

	ok, err := s.items.storeFor(ctx).SIsMember(ctx, setKey, []byte(token))
	if err != nil {
		return false, s.items.storeError(ctx, "sismember", setKey, err)
	}
	return ok, nil
}

// Remove deletes member and its shadow record, returning the number of
// members removed from the native set (0 or 1)
func (s *Sets) Remove(ctx context.Context, setKey string, member any) (int64, error) {
	token, err := s.token(setKey, member)
	if err != nil {
		return 0, err
	}

	n, err := s.removeToken(ctx, setKey, token)
	if err != nil {
		return 0, err
	}

	s.items.logger.Debugw("Redis member deleted", "set", setKey, "member_type", fmt.Sprintf("%T", member), "removed", n)
	return n, nil
}

func (s *Sets) removeToken(ctx context.Context, setKey, token string) (int64, error) {
	if _, err := s.items.Delete(ctx, ShadowKey(setKey, token)); err != nil {
		return 0, err
	}

	n, err := s.items.storeFor(ctx).SRem(ctx, setKey, []byte(token))
	if err != nil {
		return 0, s.items.storeError(ctx, "srem", setKey, err)
	}
	return n, nil
}

// expireIfDue checks the shadow record for token and, when its deadline is
// strictly in the past, deletes the record and removes the member.
func (s *Sets) expireIfDue(ctx context.Context, setKey, token string) (bool, error) {
	shadowKey := ShadowKey(setKey, token)

	data, ok, err := s.items.fetch(ctx, shadowKey)
	if err != nil || !ok {
		return false, err
	}

	var deadline Deadline
	if err := s.items.decode(shadowKey, data, &deadline); err != nil {
		return false, err
	}
	if !deadline.Before(s.items.now()) {
		return false, nil
	}

	s.items.logger.Debugw("Redis member failed expiration check", "set", setKey, "expired_at", deadline.Time)
	s.items.recorder.RecordMemberExpired(ctx)

	if _, err := s.items.Delete(ctx, shadowKey); err != nil {
		return false, err
	}
	if _, err := s.removeToken(ctx, setKey, token); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Sets) tokens(ctx context.Context, setKey string) ([]string, error) {
	raw, err := s.items.storeFor(ctx).SMembers(ctx, setKey)
	if err != nil {
		return nil, s.items.storeError(ctx, "smembers", setKey, err)
	}

	tokens := make([]string, len(raw))
	for i, token := range raw {
		tokens[i] = string(token)
	}
	sort.Strings(tokens)
	return tokens, nil
}

// Members decodes every live member of the set at setKey into a T, ordered by
// token. Expired members found along the way are cleaned up and skipped.
func Members[T any](ctx context.Context, sets *Sets, setKey string) ([]T, error) {
	tokens, err := sets.tokens(ctx, setKey)
	if err != nil {
		return nil, err
	}

	members := make([]T, 0, len(tokens))
	for _, token := range tokens {
		expired, err := sets.expireIfDue(ctx, setKey, token)
		if err != nil {
			return nil, err
		}
		if expired {
			continue
		}

		data, err := base64.StdEncoding.DecodeString(token)
		if err != nil {
			return nil, &DecodingError{Key: setKey, Err: fmt.Errorf("member token %q: %w", token, err)}
		}

		var member T
		if err := sets.items.codec.Unmarshal(data, &member); err != nil {
			return nil, &DecodingError{Key: setKey, Err: err}
		}
		members = append(members, member)
	}

	return members, nil
}

// Purge runs the expiration check on every member of the set at setKey and
// returns how many expired members were removed
func (s *Sets) Purge(ctx context.Context, setKey string) (int, error) {
	tokens, err := s.tokens(ctx, setKey)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, token := range tokens {
		expired, err := s.expireIfDue(ctx, setKey, token)
		if err != nil {
			return purged, err
		}
		if expired {
			purged++
		}
	}

	s.items.logger.Debugw("Redis set purged", "set", setKey, "checked", len(tokens), "expired", purged)
	return purged, nil
}
