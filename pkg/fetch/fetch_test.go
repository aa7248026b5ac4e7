package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reportpath/reportpath/pkg/cache"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}
}

func TestGetOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f := New(cache.NewNullCache(), WithRetryPolicy(fastPolicy()))
	res, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if res.Status != StatusOK {
		t.Errorf("Status = %v, want StatusOK", res.Status)
	}
	if string(res.Body) != "hello" {
		t.Errorf("Body = %q, want %q", res.Body, "hello")
	}
}

func TestGetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := New(cache.NewNullCache(), WithRetryPolicy(fastPolicy()))
	res, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if res.Status != StatusNotFound {
		t.Errorf("Status = %v, want StatusNotFound", res.Status)
	}
	if res.Body != nil {
		t.Errorf("Body = %q, want nil", res.Body)
	}
}

func TestTransientRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := New(cache.NewNullCache(), WithRetryPolicy(fastPolicy()))
	res, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if res.Status != StatusOK {
		t.Errorf("Status = %v, want StatusOK after retries", res.Status)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}
}

func TestTransientExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(cache.NewNullCache(), WithRetryPolicy(fastPolicy()))
	res, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if res.Status != StatusTransient {
		t.Errorf("Status = %v, want StatusTransient", res.Status)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server calls = %d, want 3 (attempt ceiling)", got)
	}
}

func TestRateLimitedRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := New(cache.NewNullCache(), WithRetryPolicy(fastPolicy()))
	res, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if res.Status != StatusRateLimited {
		t.Errorf("Status = %v, want StatusRateLimited", res.Status)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server calls = %d, want 3", got)
	}
}

func TestPermanentNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := New(cache.NewNullCache(), WithRetryPolicy(fastPolicy()))
	res, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if res.Status != StatusPermanent {
		t.Errorf("Status = %v, want StatusPermanent", res.Status)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1 (no retry)", got)
	}
}

func TestCacheServesRepeatRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("cached body"))
	}))
	defer srv.Close()

	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error: %v", err)
	}
	f := New(c, WithRetryPolicy(fastPolicy()))

	first, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if first.Cached {
		t.Error("first fetch reported cached")
	}

	second, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !second.Cached {
		t.Error("second fetch not served from cache")
	}
	if string(second.Body) != "cached body" {
		t.Errorf("cached Body = %q, want %q", second.Body, "cached body")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1", got)
	}
}

func TestCacheStoresNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache() error: %v", err)
	}
	f := New(c, WithRetryPolicy(fastPolicy()))

	for j := 0; j < 2; j++ {
		res, err := f.Get(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if res.Status != StatusNotFound {
			t.Errorf("Status = %v, want StatusNotFound", res.Status)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1 (404 cached)", got)
	}
}

func TestSingleFlightCollapsesConcurrentRequests(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Write([]byte("shared"))
	}))
	defer srv.Close()

	f := New(cache.NewNullCache(), WithRetryPolicy(fastPolicy()))

	const n = 8
	var wg sync.WaitGroup
	results := make([]*Result, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = f.Get(context.Background(), srv.URL)
		}()
	}

	// Give all goroutines time to join the in-flight call, then release it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("server calls = %d, want 1 (single flight)", got)
	}
	for i, res := range results {
		if res == nil || !res.OK() {
			t.Fatalf("result %d not OK: %+v", i, res)
		}
		if string(res.Body) != "shared" {
			t.Errorf("result %d Body = %q", i, res.Body)
		}
	}
}

func TestNoFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	f := New(cache.NewNullCache(), WithRetryPolicy(fastPolicy()))
	res, err := f.Do(context.Background(), Request{URL: srv.URL, NoFollowRedirects: true})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if res.Code != http.StatusFound {
		t.Errorf("Code = %d, want 302", res.Code)
	}
	if res.Status == StatusOK {
		t.Error("redirect reported as StatusOK")
	}
}

func TestContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	f := New(cache.NewNullCache(), WithRetryPolicy(fastPolicy()))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := f.Get(ctx, srv.URL); err == nil {
		t.Error("Get() with expired context returned nil error")
	}
}
