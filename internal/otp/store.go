package otp

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrSendRateLimited  = errors.New("too many reset code requests")
	ErrChallengeInvalid = errors.New("reset request is invalid or expired")
	ErrCodeInvalid      = errors.New("incorrect reset code")
	ErrCodeRequired     = errors.New("reset code is required")
	ErrEmailRequired    = errors.New("email is required")
	ErrEmailInvalid     = errors.New("email format is invalid")
)

// Store keeps short-lived password reset challenges in Redis, one active
// challenge per email. Codes are bcrypt-hashed at rest; resends are throttled.
type Store struct {
	client            *redis.Client
	keyPrefix         string
	challengeTTL      time.Duration
	resendAfter       time.Duration
	maxVerifyAttempts int
}

type challenge struct {
	Email      string    `json:"email"`
	CodeHash   string    `json:"codeHash"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Attempts   int       `json:"attempts"`
	MaxAttempt int       `json:"maxAttempt"`
}

// NewStore connects to Redis at addr. An empty addr is an error.
func NewStore(addr, password string) (*Store, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("otp redis addr is required")
	}
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		keyPrefix:         "bookmarket:auth:reset",
		challengeTTL:      5 * time.Minute,
		resendAfter:       time.Minute,
		maxVerifyAttempts: 5,
	}, nil
}

// CreateChallenge issues a new 6-digit reset code for email.
// Returns the plaintext code and its TTL in seconds.
func (s *Store) CreateChallenge(email string) (string, int, error) {
	if s == nil {
		return "", 0, errors.New("otp store not configured")
	}
	email, err := NormalizeEmail(email)
	if err != nil {
		return "", 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resendKey := s.resendKey(email)
	allowed, err := s.client.SetNX(ctx, resendKey, "1", s.resendAfter).Result()
	if err != nil {
		return "", 0, err
	}
	if !allowed {
		return "", 0, ErrSendRateLimited
	}

	code, err := generateNumericCode(6)
	if err != nil {
		_ = s.client.Del(ctx, resendKey).Err()
		return "", 0, fmt.Errorf("generate reset code: %w", err)
	}
	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		_ = s.client.Del(ctx, resendKey).Err()
		return "", 0, fmt.Errorf("hash reset code: %w", err)
	}
	ch := challenge{
		Email:      email,
		CodeHash:   string(codeHash),
		ExpiresAt:  time.Now().UTC().Add(s.challengeTTL),
		Attempts:   0,
		MaxAttempt: s.maxVerifyAttempts,
	}
	raw, err := json.Marshal(ch)
	if err != nil {
		_ = s.client.Del(ctx, resendKey).Err()
		return "", 0, fmt.Errorf("marshal reset challenge: %w", err)
	}
	if err := s.client.Set(ctx, s.challengeKey(email), raw, s.challengeTTL).Err(); err != nil {
		_ = s.client.Del(ctx, resendKey).Err()
		return "", 0, err
	}
	return code, int(s.challengeTTL.Seconds()), nil
}

// VerifyChallenge checks a submitted code against the active challenge for
// email and consumes the challenge on success. Failed attempts count toward
// the per-challenge attempt cap.
func (s *Store) VerifyChallenge(email, code string) error {
	if s == nil {
		return errors.New("otp store not configured")
	}
	email, err := NormalizeEmail(email)
	if err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrCodeRequired
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	key := s.challengeKey(email)
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrChallengeInvalid
	}
	if err != nil {
		return err
	}
	var ch challenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return fmt.Errorf("unmarshal reset challenge: %w", err)
	}
	if ch.Email != email {
		return ErrChallengeInvalid
	}
	if time.Now().UTC().After(ch.ExpiresAt) {
		_ = s.client.Del(ctx, key).Err()
		return ErrChallengeInvalid
	}
	if ch.Attempts >= ch.MaxAttempt {
		_ = s.client.Del(ctx, key).Err()
		return ErrChallengeInvalid
	}
	if bcrypt.CompareHashAndPassword([]byte(ch.CodeHash), []byte(code)) != nil {
		ch.Attempts++
		if ch.Attempts >= ch.MaxAttempt {
			_ = s.client.Del(ctx, key).Err()
		} else {
			raw, marshalErr := json.Marshal(ch)
			if marshalErr == nil {
				ttl, ttlErr := s.client.TTL(ctx, key).Result()
				if ttlErr == nil && ttl > 0 {
					_ = s.client.Set(ctx, key, raw, ttl).Err()
				}
			}
		}
		return ErrCodeInvalid
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return err
	}
	return nil
}

func (s *Store) challengeKey(email string) string {
	return fmt.Sprintf("%s:challenge:%s", s.keyPrefix, email)
}

func (s *Store) resendKey(email string) string {
	return fmt.Sprintf("%s:resend:%s", s.keyPrefix, email)
}

// NormalizeEmail lowercases, trims and validates an email address.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", ErrEmailRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrEmailInvalid
	}
	return email, nil
}

func generateNumericCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// MaskEmail obscures the local part of an address for log output.
func MaskEmail(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}
	local := parts[0]
	domain := parts[1]
	switch len(local) {
	case 0:
		return "***@" + domain
	case 1:
		return local + "***@" + domain
	case 2:
		return local[:1] + "***@" + domain
	default:
		return local[:1] + "***" + local[len(local)-1:] + "@" + domain
	}
}
