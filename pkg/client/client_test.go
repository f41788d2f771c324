package client

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/restcache/rest-cache/internal/testutil"
	"github.com/restcache/rest-cache/pkg/cache"
	"github.com/restcache/rest-cache/pkg/store"
)

func newTestClient(t *testing.T) (*Client, *testutil.MockOrigin, *store.Store) {
	t.Helper()

	origin := testutil.NewMockOrigin()
	t.Cleanup(origin.Close)

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	engine, err := cache.New(cache.Config{
		Store:  st,
		Policy: cache.NewPolicy(""),
		Expiry: cache.DefaultExpiryPolicy(),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	client, err := New(Config{Engine: engine, UserAgent: "rest-cache-test/1.0"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, origin, st
}

func TestNewRequiresEngine(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing engine")
	}
}

func TestGetCachesSecondCall(t *testing.T) {
	client, origin, _ := newTestClient(t)
	ctx := context.Background()
	url := origin.URL() + "/v1/items"

	origin.SetResponse("/v1/items", testutil.MockResponse{
		StatusCode: 200,
		Body:       `{"items":[1,2]}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	first, err := client.Get(ctx, url, cache.Options{})
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if first.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", first.StatusCode)
	}
	if origin.Requests() != 1 {
		t.Fatalf("origin requests = %d, want 1", origin.Requests())
	}

	second, err := client.Get(ctx, url, cache.Options{})
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if origin.Requests() != 1 {
		t.Errorf("origin requests = %d, want 1 (second call should hit cache)", origin.Requests())
	}
	if string(second.Body) != string(first.Body) {
		t.Errorf("cached body = %q, want %q", second.Body, first.Body)
	}
	if got := second.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("cached Content-Type = %q", got)
	}
}

func TestGetDistinctURLsAreSeparateEntries(t *testing.T) {
	client, origin, _ := newTestClient(t)
	ctx := context.Background()

	if _, err := client.Get(ctx, origin.URL()+"/a", cache.Options{}); err != nil {
		t.Fatalf("get /a: %v", err)
	}
	if _, err := client.Get(ctx, origin.URL()+"/b", cache.Options{}); err != nil {
		t.Fatalf("get /b: %v", err)
	}
	if origin.Requests() != 2 {
		t.Errorf("origin requests = %d, want 2", origin.Requests())
	}
}

func TestGetSendsUserAgentAndHeaders(t *testing.T) {
	client, origin, _ := newTestClient(t)
	ctx := context.Background()

	args := cache.GetArgs(cache.Options{})
	args.Header = http.Header{"X-Custom": {"value"}}
	if _, err := client.Do(ctx, origin.URL()+"/v1/items", args); err != nil {
		t.Fatalf("do: %v", err)
	}

	if got := origin.LastRequestHeader.Get("User-Agent"); got != "rest-cache-test/1.0" {
		t.Errorf("User-Agent = %q", got)
	}
	if got := origin.LastRequestHeader.Get("X-Custom"); got != "value" {
		t.Errorf("X-Custom = %q", got)
	}
}

func TestReplaceOptionRefetches(t *testing.T) {
	client, origin, _ := newTestClient(t)
	ctx := context.Background()
	url := origin.URL() + "/v1/items"

	if _, err := client.Get(ctx, url, cache.Options{}); err != nil {
		t.Fatalf("prime: %v", err)
	}
	if _, err := client.Get(ctx, url, cache.Options{Replace: true}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if origin.Requests() != 2 {
		t.Errorf("origin requests = %d, want 2 (replace forces refetch)", origin.Requests())
	}
}

func TestExcludeOptionSkipsCache(t *testing.T) {
	client, origin, st := newTestClient(t)
	ctx := context.Background()
	url := origin.URL() + "/v1/items"

	if _, err := client.Get(ctx, url, cache.Options{Exclude: true}); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := st.Get(ctx, cache.Key(url)); err != store.ErrNotFound {
		t.Errorf("excluded call was cached, err=%v", err)
	}
}

func TestStaleEntryStillServes(t *testing.T) {
	client, origin, _ := newTestClient(t)
	ctx := context.Background()
	url := origin.URL() + "/v1/items"

	origin.SetResponse("/v1/items", testutil.MockResponse{StatusCode: 200, Body: "good"})
	if _, err := client.Get(ctx, url, cache.Options{TTL: cache.TTL(1)}); err != nil {
		t.Fatalf("prime: %v", err)
	}

	// wait out the short lifetime; the stale entry must still serve
	time.Sleep(1100 * time.Millisecond)
	res, err := client.Get(ctx, url, cache.Options{})
	if err != nil {
		t.Fatalf("stale get: %v", err)
	}
	if string(res.Body) != "good" {
		t.Errorf("stale body = %q, want %q", res.Body, "good")
	}
	if origin.Requests() != 1 {
		t.Errorf("origin requests = %d, want 1 (stale serve is a hit)", origin.Requests())
	}
}

func TestFetchBypassesCache(t *testing.T) {
	client, origin, _ := newTestClient(t)
	ctx := context.Background()
	url := origin.URL() + "/v1/items"

	if _, err := client.Get(ctx, url, cache.Options{}); err != nil {
		t.Fatalf("prime: %v", err)
	}
	res, err := client.Fetch(ctx, url, cache.GetArgs(cache.Options{}))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", res.StatusCode)
	}
	if origin.Requests() != 2 {
		t.Errorf("origin requests = %d, want 2 (fetch must reach origin)", origin.Requests())
	}
}

func TestFetchOriginDown(t *testing.T) {
	client, origin, _ := newTestClient(t)
	url := origin.URL() + "/v1/items"
	origin.Close()

	if _, err := client.Get(context.Background(), url, cache.Options{}); err == nil {
		t.Fatal("expected error when origin is unreachable")
	}
}

func TestFetchPerCallTimeout(t *testing.T) {
	client, origin, _ := newTestClient(t)
	ctx := context.Background()
	url := origin.URL() + "/slow"

	origin.SetResponse("/slow", testutil.MockResponse{
		StatusCode: 200,
		Body:       "slow",
		Delay:      500 * time.Millisecond,
	})

	args := cache.GetArgs(cache.Options{})
	args.Timeout = 50 * time.Millisecond
	if _, err := client.Fetch(ctx, url, args); err == nil {
		t.Fatal("expected timeout error")
	}
}
