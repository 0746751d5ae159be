package cache

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/neilotoole/slogt"
)

func TestKey(t *testing.T) {
	tests := []struct {
		name   string
		got    string
		want   string
	}{
		{"NoFilter", Key(1, 2, "channels"), "msg:1:2:channels"},
		{"OneFilter", Key(1, 2, "notifications", "unread"), "msg:1:2:notifications:unread"},
		{"TwoFilters", Key(7, 9, "notifications", "all", "p2"), "msg:7:9:notifications:all:p2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("Got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestKindPrefixCoversKeys(t *testing.T) {
	key := Key(1, 2, "notifications", "unread")
	prefix := KindPrefix(1, 2, "notifications")
	if !strings.HasPrefix(key, prefix) {
		t.Errorf("Key %q not covered by kind prefix %q", key, prefix)
	}

	other := Key(1, 2, "channels")
	if strings.HasPrefix(other, prefix) {
		t.Errorf("Key %q wrongly covered by kind prefix %q", other, prefix)
	}
}

func TestUserPrefixCoversAllKinds(t *testing.T) {
	prefix := UserPrefix(1, 2)
	for _, key := range []string{
		Key(1, 2, "channels"),
		Key(1, 2, "notifications", "all"),
	} {
		if !strings.HasPrefix(key, prefix) {
			t.Errorf("Key %q not covered by user prefix %q", key, prefix)
		}
	}
	if foreign := Key(1, 20, "channels"); strings.HasPrefix(foreign, prefix) {
		t.Errorf("Key %q of another user wrongly covered by %q", foreign, prefix)
	}
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	prev := slog.Default()
	slog.SetDefault(slogt.New(t))
	t.Cleanup(func() { slog.SetDefault(prev) })

	srv := miniredis.RunT(t)
	c, err := Connect(context.Background(), srv.Addr(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c, srv
}

type cachedList struct {
	Items []string `json:"items"`
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	c, _ := newTestCache(t)

	computes := 0
	compute := func(context.Context) (any, error) {
		computes++
		return cachedList{Items: []string{"a", "b"}}, nil
	}
	key := Key(1, 2, "channels")

	var got cachedList
	if err := c.GetOrCompute(context.Background(), key, &got, compute); err != nil {
		t.Fatal(err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("Got %v, want two items", got.Items)
	}

	got = cachedList{}
	if err := c.GetOrCompute(context.Background(), key, &got, compute); err != nil {
		t.Fatal(err)
	}
	if computes != 1 {
		t.Errorf("Second read recomputed: %d computes, want 1", computes)
	}
	if len(got.Items) != 2 {
		t.Errorf("Cached read returned %v, want two items", got.Items)
	}
}

func TestGetOrCompute_BackendFailureFallsThroughToCompute(t *testing.T) {
	c, srv := newTestCache(t)
	srv.SetError("connection reset")

	var got cachedList
	err := c.GetOrCompute(context.Background(), Key(1, 2, "channels"), &got, func(context.Context) (any, error) {
		return cachedList{Items: []string{"a"}}, nil
	})
	if err != nil {
		t.Fatalf("A failing backend must not fail the read: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0] != "a" {
		t.Errorf("Got %v, want the computed value", got.Items)
	}
}

func TestInvalidate_RemovesOnlyThePrefix(t *testing.T) {
	c, srv := newTestCache(t)

	for _, key := range []string{
		"msg:1:2:channels",
		"msg:1:2:notifications:all",
		"msg:1:3:channels",
	} {
		if err := srv.Set(key, `{"items":[]}`); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.Invalidate(context.Background(), KindPrefix(1, 2, "channels")); err != nil {
		t.Fatal(err)
	}
	if srv.Exists("msg:1:2:channels") {
		t.Error("Invalidated key still present")
	}
	if !srv.Exists("msg:1:2:notifications:all") {
		t.Error("Another kind of the same user was dropped")
	}
	if !srv.Exists("msg:1:3:channels") {
		t.Error("Another user's key was dropped")
	}
}
