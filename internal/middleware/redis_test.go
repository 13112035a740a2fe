package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/concert-reservation/internal/config"
	"github.com/iliyamo/concert-reservation/internal/logger"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func cacheConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
	}
}

// catalogServer mimics the concert routes: GET reads a counter, POST bumps
// it, and POST answers 409 once the counter reaches limit.
type catalogServer struct {
	e        *echo.Echo
	reserved atomic.Int64
	limit    int64
	reads    atomic.Int64

	// beforeWrite, when set, runs between reading the counter and writing
	// the GET response.
	beforeWrite func()
}

func newCatalogServer(t *testing.T, rdb *redis.Client, limit int64) *catalogServer {
	t.Helper()
	s := &catalogServer{e: echo.New(), limit: limit}
	log := logger.Discard()
	cfg := cacheConfig()

	s.e.GET("/concerts/dashboard", func(c echo.Context) error {
		s.reads.Add(1)
		n := s.reserved.Load()
		if s.beforeWrite != nil {
			s.beforeWrite()
		}
		return c.JSON(http.StatusOK, map[string]int64{"totalSeatReserve": n})
	}, NewRedisCache(cfg, rdb, log))

	s.e.POST("/user/:id/:type", func(c echo.Context) error {
		if s.reserved.Load() >= s.limit {
			return c.JSON(http.StatusConflict, map[string]string{"error": "seats exhausted"})
		}
		s.reserved.Add(1)
		return c.JSON(http.StatusOK, map[string]string{"status": "success"})
	}, NewCacheInvalidator(cfg, rdb, log))
	return s
}

func (s *catalogServer) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRedisCacheHitIsIdentical(t *testing.T) {
	t.Parallel()
	_, rdb := newRedis(t)
	s := newCatalogServer(t, rdb, 10)

	miss := s.do(http.MethodGet, "/concerts/dashboard")
	hit := s.do(http.MethodGet, "/concerts/dashboard")

	if miss.Header().Get("X-Cache") != "MISS" || hit.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("X-Cache = %q then %q", miss.Header().Get("X-Cache"), hit.Header().Get("X-Cache"))
	}
	if hit.Code != miss.Code || hit.Body.String() != miss.Body.String() {
		t.Errorf("hit %d %q differs from miss %d %q", hit.Code, hit.Body.String(), miss.Code, miss.Body.String())
	}
	if hit.Header().Get(echo.HeaderContentType) != miss.Header().Get(echo.HeaderContentType) {
		t.Errorf("content type not restored: %q", hit.Header().Get(echo.HeaderContentType))
	}
	if n := s.reads.Load(); n != 1 {
		t.Errorf("handler ran %d times, want 1", n)
	}
}

func TestCacheInvalidatorPurgesOnSuccessOnly(t *testing.T) {
	t.Parallel()
	mr, rdb := newRedis(t)
	s := newCatalogServer(t, rdb, 1)

	s.do(http.MethodGet, "/concerts/dashboard")
	if rec := s.do(http.MethodPost, "/user/1/reserve"); rec.Code != http.StatusOK {
		t.Fatalf("reserve = %d", rec.Code)
	}
	for _, k := range mr.Keys() {
		if k != genKey("cache") {
			t.Errorf("key %q survived invalidation", k)
		}
	}
	rec := s.do(http.MethodGet, "/concerts/dashboard")
	if rec.Header().Get("X-Cache") != "MISS" || rec.Body.String() != "{\"totalSeatReserve\":1}\n" {
		t.Fatalf("after reserve: %s %q", rec.Header().Get("X-Cache"), rec.Body.String())
	}

	genBefore, _ := mr.Get(genKey("cache"))
	if rec := s.do(http.MethodPost, "/user/1/reserve"); rec.Code != http.StatusConflict {
		t.Fatalf("second reserve = %d, want 409", rec.Code)
	}
	if genAfter, _ := mr.Get(genKey("cache")); genAfter != genBefore {
		t.Errorf("generation bumped on a failed request: %s -> %s", genBefore, genAfter)
	}
	if rec := s.do(http.MethodGet, "/concerts/dashboard"); rec.Header().Get("X-Cache") != "HIT" {
		t.Errorf("cache dropped after a 409: X-Cache=%s", rec.Header().Get("X-Cache"))
	}
}

// A read that loaded the counter before a reservation committed must not
// be served once the reservation's invalidation has run.
func TestCacheReadRacingInvalidation(t *testing.T) {
	t.Parallel()
	_, rdb := newRedis(t)
	s := newCatalogServer(t, rdb, 10)

	loaded := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	s.beforeWrite = func() {
		once.Do(func() {
			close(loaded)
			<-release
		})
	}

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- s.do(http.MethodGet, "/concerts/dashboard") }()

	<-loaded
	if rec := s.do(http.MethodPost, "/user/1/reserve"); rec.Code != http.StatusOK {
		t.Fatalf("reserve = %d", rec.Code)
	}
	close(release)
	if slow := <-done; slow.Body.String() != "{\"totalSeatReserve\":0}\n" {
		t.Fatalf("slow read = %q", slow.Body.String())
	}

	rec := s.do(http.MethodGet, "/concerts/dashboard")
	if rec.Body.String() != "{\"totalSeatReserve\":1}\n" {
		t.Errorf("read after reserve = %s %q, want the committed count", rec.Header().Get("X-Cache"), rec.Body.String())
	}
}

func TestTokenBucketDeniesWhenSpent(t *testing.T) {
	t.Parallel()
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            2 * time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}

	e := echo.New()
	e.POST("/user/:id/:type", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, NewTokenBucket(cfg, rdb, logger.Discard()))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/user/1/reserve", nil)
		req.RemoteAddr = ip + ":4000"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	for i, wantRemaining := range []string{"1", "0"} {
		rec := send("10.0.0.1")
		if rec.Code != http.StatusOK || rec.Header().Get("X-RateLimit-Remaining") != wantRemaining {
			t.Fatalf("request %d: %d remaining=%q", i, rec.Code, rec.Header().Get("X-RateLimit-Remaining"))
		}
	}

	rec := send("10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", rec.Code)
	}
	secs, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || secs <= 0 || secs > 3600 {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}

	if rec := send("10.0.0.2"); rec.Code != http.StatusOK {
		t.Errorf("other client throttled: %d", rec.Code)
	}
}
