package options

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"rivoj/internal/common/cache"
	"rivoj/internal/judgeapi"
	appErr "rivoj/pkg/errors"
)

// Redis keys for runtime options.
const (
	keyJudgeToken = "options:judge_server_token"
	keyLanguages  = "options:languages"
)

// Service serves runtime options from a Redis key-value store with a short
// in-process TTL cache in front. An explicit instance is injected everywhere
// options are needed.
type Service struct {
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	value     string
	expiresAt time.Time
}

func NewService(c cache.Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{
		cache:   c,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

func (s *Service) get(ctx context.Context, key string) (string, error) {
	now := s.now()
	s.mu.Lock()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		value := e.value
		s.mu.Unlock()
		return value, nil
	}
	s.mu.Unlock()

	value, err := s.cache.Get(ctx, key)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.CacheError, "read option failed")
	}
	if value != "" {
		s.mu.Lock()
		s.entries[key] = entry{value: value, expiresAt: now.Add(s.ttl)}
		s.mu.Unlock()
	}
	return value, nil
}

func (s *Service) set(ctx context.Context, key, value string) error {
	if err := s.cache.Set(ctx, key, value, 0); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "write option failed")
	}
	s.mu.Lock()
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

// JudgeToken returns the shared secret workers must prove knowledge of.
func (s *Service) JudgeToken(ctx context.Context) (string, error) {
	token, err := s.get(ctx, keyJudgeToken)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", appErr.New(appErr.RecordNotFound).WithMessage("judge server token is not configured")
	}
	return token, nil
}

// HashedJudgeToken returns the sha256 hex digest of the shared secret, the
// form actually carried on the wire.
func (s *Service) HashedJudgeToken(ctx context.Context) (string, error) {
	token, err := s.JudgeToken(ctx)
	if err != nil {
		return "", err
	}
	return HashToken(token), nil
}

// SetJudgeToken stores the shared secret.
func (s *Service) SetJudgeToken(ctx context.Context, token string) error {
	if token == "" {
		return appErr.ValidationError("token", "required")
	}
	return s.set(ctx, keyJudgeToken, token)
}

// Languages returns the configured language set, falling back to the
// built-in defaults when nothing has been stored.
func (s *Service) Languages(ctx context.Context) (map[string]Language, error) {
	raw, err := s.get(ctx, keyLanguages)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return DefaultLanguages(), nil
	}
	var languages map[string]Language
	if err := json.Unmarshal([]byte(raw), &languages); err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "decode languages option failed")
	}
	return languages, nil
}

// Language looks up one language by name.
func (s *Service) Language(ctx context.Context, name string) (Language, error) {
	languages, err := s.Languages(ctx)
	if err != nil {
		return Language{}, err
	}
	lang, ok := languages[name]
	if !ok {
		return Language{}, appErr.New(appErr.LanguageNotSupported).WithDetail("language", name)
	}
	return lang, nil
}

// SetLanguages replaces the stored language set.
func (s *Service) SetLanguages(ctx context.Context, languages map[string]Language) error {
	payload, err := json.Marshal(languages)
	if err != nil {
		return appErr.Wrapf(err, appErr.InternalServerError, "encode languages option failed")
	}
	return s.set(ctx, keyLanguages, string(payload))
}

// HashToken computes the wire form of the shared judge secret.
func HashToken(token string) string {
	return judgeapi.HashToken(token)
}

// Language bundles everything the dispatcher needs to send a job in one
// language, including the optional special judge toolchain.
type Language struct {
	Config     judgeapi.LanguageConfig `json:"config"`
	SPJ        *judgeapi.SPJConfig     `json:"spj,omitempty"`
	SPJCompile *judgeapi.CompileConfig `json:"spj_compile,omitempty"`
}
