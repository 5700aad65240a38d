package options

import (
	"context"
	"testing"
	"time"

	"rivoj/internal/common/cache"
	appErr "rivoj/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestService(t *testing.T, ttl time.Duration) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("create cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return NewService(c, ttl), mr
}

func TestJudgeTokenRoundTrip(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, time.Minute)
	ctx := context.Background()

	if _, err := svc.JudgeToken(ctx); appErr.GetCode(err) != appErr.RecordNotFound {
		t.Fatalf("JudgeToken on empty store: err = %v, want RecordNotFound", err)
	}

	if err := svc.SetJudgeToken(ctx, "open-sesame"); err != nil {
		t.Fatalf("SetJudgeToken: %v", err)
	}
	token, err := svc.JudgeToken(ctx)
	if err != nil {
		t.Fatalf("JudgeToken: %v", err)
	}
	if token != "open-sesame" {
		t.Fatalf("JudgeToken = %q, want %q", token, "open-sesame")
	}

	hashed, err := svc.HashedJudgeToken(ctx)
	if err != nil {
		t.Fatalf("HashedJudgeToken: %v", err)
	}
	if hashed != HashToken("open-sesame") {
		t.Fatalf("HashedJudgeToken = %q, want sha256 of secret", hashed)
	}
	if len(hashed) != 64 {
		t.Fatalf("hashed token length = %d, want 64 hex chars", len(hashed))
	}
}

func TestTTLCacheServesStaleUntilExpiry(t *testing.T) {
	t.Parallel()
	svc, mr := newTestService(t, time.Minute)
	ctx := context.Background()

	if err := svc.SetJudgeToken(ctx, "first"); err != nil {
		t.Fatalf("SetJudgeToken: %v", err)
	}
	// Change the backing store behind the service's back; the TTL cache
	// keeps serving the old value until it expires.
	mr.Set("options:judge_server_token", "second")

	token, err := svc.JudgeToken(ctx)
	if err != nil {
		t.Fatalf("JudgeToken: %v", err)
	}
	if token != "first" {
		t.Fatalf("JudgeToken = %q, want cached %q", token, "first")
	}

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	token, err = svc.JudgeToken(ctx)
	if err != nil {
		t.Fatalf("JudgeToken after expiry: %v", err)
	}
	if token != "second" {
		t.Fatalf("JudgeToken after expiry = %q, want %q", token, "second")
	}
}

func TestLanguagesFallBackToDefaults(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t, time.Minute)
	ctx := context.Background()

	languages, err := svc.Languages(ctx)
	if err != nil {
		t.Fatalf("Languages: %v", err)
	}
	for _, name := range []string{"C", "C++", "Java", "Python3"} {
		if _, ok := languages[name]; !ok {
			t.Fatalf("default languages missing %q", name)
		}
	}

	lang, err := svc.Language(ctx, "C++")
	if err != nil {
		t.Fatalf("Language: %v", err)
	}
	if lang.Config.Run.SeccompRule != "c_cpp" {
		t.Fatalf("C++ seccomp rule = %q, want c_cpp", lang.Config.Run.SeccompRule)
	}

	if _, err := svc.Language(ctx, "Brainfuck"); appErr.GetCode(err) != appErr.LanguageNotSupported {
		t.Fatalf("unknown language err = %v, want LanguageNotSupported", err)
	}
}
