package training

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const (
	codePrefixFallback = "COUR"
	codeGenRetries     = 5
	base36             = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Registry validates access codes and derives their usage. It never writes.
type Registry struct {
	codes AccessCodeRepo
	now   func() time.Time
}

func NewRegistry(codes AccessCodeRepo, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{codes: codes, now: now}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate resolves a code string. Expiry is reported before deactivation so
// an expired code always reads as expired.
func (r *Registry) Validate(ctx context.Context, code string) (AccessCode, error) {
	c, err := r.codes.AccessCodeByCode(ctx, normalizeCode(code))
	if errors.Is(err, ErrNotFound) {
		return AccessCode{}, ErrCodeNotFound
	}
	if err != nil {
		return AccessCode{}, fmt.Errorf("lookup access code: %w", err)
	}
	if c.Expired(r.now()) {
		return AccessCode{}, ErrCodeExpired
	}
	if !c.IsActive {
		return AccessCode{}, ErrCodeInactive
	}
	return c, nil
}

// ActiveUsageCount is the number of sessions under the code that hold no
// valid certificate yet.
func (r *Registry) ActiveUsageCount(ctx context.Context, accessCodeID string) (int, error) {
	return r.codes.CountInFlightSessions(ctx, accessCodeID)
}

// CheckCapacity reports whether one more session may join the code.
func (r *Registry) CheckCapacity(ctx context.Context, c AccessCode) (bool, error) {
	if c.UnlimitedParticipants {
		return true, nil
	}
	if c.MaxParticipants == nil {
		return false, nil
	}
	n, err := r.ActiveUsageCount(ctx, c.ID)
	if err != nil {
		return false, err
	}
	return n < *c.MaxParticipants, nil
}

// NewCode returns a code that is not yet taken, retrying a few times on the
// unlikely collision. The unique index on access_codes.code still decides.
func (r *Registry) NewCode(ctx context.Context, courseName string) (string, error) {
	for i := 0; i < codeGenRetries; i++ {
		code := GenerateCode(courseName, r.now())
		taken, err := r.codes.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("generate access code: %w", ErrDuplicate)
}

// GenerateCode builds PREFIX + base36(unix millis) + 4 random base36 chars,
// uppercased. PREFIX is the first four letters of the course name, or COUR.
func GenerateCode(courseName string, at time.Time) string {
	var b strings.Builder
	b.WriteString(codePrefix(courseName))
	b.WriteString(strconv.FormatInt(at.UnixMilli(), 36))
	for i := 0; i < 4; i++ {
		b.WriteByte(base36[rand.IntN(len(base36))])
	}
	return strings.ToUpper(b.String())
}

func codePrefix(name string) string {
	var letters []byte
	for _, ch := range strings.ToUpper(name) {
		if ch >= 'A' && ch <= 'Z' {
			letters = append(letters, byte(ch))
			if len(letters) == 4 {
				return string(letters)
			}
		}
	}
	return codePrefixFallback
}
