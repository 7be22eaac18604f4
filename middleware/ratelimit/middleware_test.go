package ratelimit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratelimit-gateway/middleware/ratelimit/infra"
)

func newTestLimiter(t *testing.T, cfg Config) *Limiter {
	t.Helper()
	m := infra.NewManager()
	t.Cleanup(m.Close)

	l, err := New(m, cfg)
	require.NoError(t, err)
	return l
}

func okHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			*calls++
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
}

func serve(h http.Handler, accept string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "http://example/showTela", nil)
	r.RemoteAddr = "127.0.0.1:1234"
	if accept != "" {
		r.Header.Set("Accept", accept)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestMiddleware_FirstRequestHeaders(t *testing.T) {
	l := newTestLimiter(t, Config{Limit: 10, Period: 10 * time.Second})
	h := Middleware(l)(okHandler(nil))

	w := serve(h, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))

	reset, err := strconv.ParseInt(w.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.Greater(t, reset, time.Now().Unix())
}

func TestMiddleware_ElevenRequestsInOneWindow(t *testing.T) {
	l := newTestLimiter(t, Config{Limit: 10, Period: 10 * time.Second})
	calls := 0
	h := Middleware(l)(okHandler(&calls))

	for i := 1; i <= 10; i++ {
		w := serve(h, "")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, strconv.Itoa(10-i), w.Header().Get("X-RateLimit-Remaining"), "request %d", i)
	}

	w := serve(h, "text/html")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retryAfter, 0)

	reset, err := strconv.ParseInt(w.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.Greater(t, reset, time.Now().Unix())

	assert.Equal(t, "Rate limit exceeded", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, 10, calls, "rejected request must not reach the next handler")
}

func TestMiddleware_ErrorJSON(t *testing.T) {
	l := newTestLimiter(t, Config{Limit: 10, Period: 10 * time.Second})
	h := Middleware(l)(okHandler(nil))

	var w *httptest.ResponseRecorder
	for i := 0; i <= 10; i++ {
		w = serve(h, "application/json")
	}

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"message": "Rate limit exceeded"}, body)
}

func TestMiddleware_ErrorMessage(t *testing.T) {
	l := newTestLimiter(t, Config{Limit: 10, Period: 10 * time.Second, Message: "Too many requests"})
	h := Middleware(l)(okHandler(nil))

	var w *httptest.ResponseRecorder
	for i := 0; i <= 10; i++ {
		w = serve(h, "text/html")
	}

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests", w.Body.String())
}

func TestMiddleware_CustomErrorRendererReplacesBody(t *testing.T) {
	l := newTestLimiter(t, Config{
		Limit:  10,
		Period: 10 * time.Second,
		ErrorRenderer: func(r *http.Request, resp *Response) (*Response, error) {
			return resp.SetBody("<h1>Too many requests</h1>"), nil
		},
	})
	h := Middleware(l)(okHandler(nil))

	var w *httptest.ResponseRecorder
	for i := 0; i <= 10; i++ {
		w = serve(h, "text/html")
	}

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "<h1>Too many requests</h1>", w.Body.String())
}

func TestMiddleware_CustomHeaderNames(t *testing.T) {
	l := newTestLimiter(t, Config{
		Limit:   10,
		Period:  10 * time.Second,
		Headers: &HeaderNames{Limit: "X-Test-Limit", Remaining: "X-Test-Remaining", Reset: "X-Test-Reset"},
	})
	h := Middleware(l)(okHandler(nil))

	w := serve(h, "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10", w.Header().Get("X-Test-Limit"))
	assert.Equal(t, "9", w.Header().Get("X-Test-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-Test-Reset"))

	for _, name := range []string{DefaultLimitHeader, DefaultRemainingHeader, DefaultResetHeader} {
		assert.Empty(t, w.Header().Get(name), "default header %s must not be set", name)
	}
}

func TestMiddleware_IdentifierSeparatesBuckets(t *testing.T) {
	i := 0
	l := newTestLimiter(t, Config{
		Limit:  10,
		Period: 10 * time.Second,
		KeyFn:  func(*http.Request) (string, error) { return fmt.Sprintf("user%d", i), nil },
	})
	h := Middleware(l)(okHandler(nil))

	var w *httptest.ResponseRecorder
	for i = 0; i <= 10; i++ {
		w = serve(h, "")
	}

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddleware_SkipCheck(t *testing.T) {
	l := newTestLimiter(t, Config{
		Limit:  10,
		Period: 10 * time.Second,
		SkipFn: func(*http.Request) bool { return true },
	})
	h := Middleware(l)(okHandler(nil))

	var w *httptest.ResponseRecorder
	for i := 0; i <= 10; i++ {
		w = serve(h, "")
	}

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(DefaultLimitHeader), "skipped requests carry no rate limit headers")
}

func TestMiddleware_KeyErrorIsInternalError(t *testing.T) {
	l := newTestLimiter(t, Config{
		KeyFn: func(*http.Request) (string, error) { return "", errors.New("no api key") },
	})
	calls := 0
	h := Middleware(l)(okHandler(&calls))

	w := serve(h, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, calls)
}

func TestMiddleware_RendererErrorIsInternalError(t *testing.T) {
	l := newTestLimiter(t, Config{
		Limit: 1,
		ErrorRenderer: func(*http.Request, *Response) (*Response, error) {
			return nil, errors.New("template broken")
		},
	})
	h := Middleware(l)(okHandler(nil))

	require.Equal(t, http.StatusOK, serve(h, "").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(h, "").Code)
}
