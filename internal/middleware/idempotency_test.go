package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mfs-pay/mfs_pay/internal/auth"
	"github.com/mfs-pay/mfs_pay/internal/logging"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	return newCountingApp(cache)
}

var calls int32

func newCountingApp(cache *redis.Client) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if acct := c.Get("X-Test-Account"); acct != "" {
			auth.SetIdentity(c, auth.Identity{AccountID: acct, Email: acct + "@x.io"})
		}
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/send-money", func(c *fiber.Ctx) error {
		n := atomic.AddInt32(&calls, 1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": n})
	})
	return app
}

func post(t *testing.T, app *fiber.App, account, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/send-money", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if account != "" {
		req.Header.Set("X-Test-Account", account)
	}
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyPassesThroughWithoutHeader(t *testing.T) {
	app := setupTestApp(t)
	atomic.StoreInt32(&calls, 0)

	post(t, app, "acct-1", "")
	status, _ := post(t, app, "acct-1", "")
	if status != fiber.StatusCreated {
		t.Fatalf("expected %d got %d", fiber.StatusCreated, status)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected handler to run twice, ran %d", got)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app := setupTestApp(t)
	atomic.StoreInt32(&calls, 0)

	status, first := post(t, app, "acct-1", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}

	// Second request should return the cached response without invoking handler again.
	status, second := post(t, app, "acct-1", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status)
	}
	if first != second {
		t.Fatalf("expected cached payload %s got %s", first, second)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected handler to run once, ran %d", got)
	}
}

func TestIdempotencyKeysAreScopedPerAccount(t *testing.T) {
	app := setupTestApp(t)
	atomic.StoreInt32(&calls, 0)

	_, first := post(t, app, "acct-1", "shared")
	_, second := post(t, app, "acct-2", "shared")
	if first == second {
		t.Fatalf("different accounts must not share a replay, both got %s", first)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected handler to run twice, ran %d", got)
	}
}

func TestIdempotencyWithoutCache(t *testing.T) {
	app := newCountingApp(nil)
	atomic.StoreInt32(&calls, 0)

	post(t, app, "acct-1", "k")
	post(t, app, "acct-1", "k")
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("nil cache should disable replay, handler ran %d", got)
	}
}
