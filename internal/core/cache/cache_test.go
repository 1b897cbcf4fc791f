package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type payload struct {
	Name string `json:"name"`
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0)
	c.Prefix = "t:"
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	if _, err := GetJSON[payload](c, ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Expected ErrMiss, got %v", err)
	}
	if err := SetJSON(c, ctx, "k", payload{Name: "ann"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := GetJSON[payload](c, ctx, "k")
	if err != nil || got.Name != "ann" {
		t.Fatalf("Expected ann, got %+v, %v", got, err)
	}
	if err := c.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := GetJSON[payload](c, ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss after delete, got %v", err)
	}
}

func TestGetOrLoadJSON(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	var calls int32
	load := func(context.Context) (*payload, error) {
		atomic.AddInt32(&calls, 1)
		return &payload{Name: "loaded"}, nil
	}
	for i := 0; i < 3; i++ {
		got, err := GetOrLoadJSON(c, ctx, "p", time.Minute, load)
		if err != nil || got.Name != "loaded" {
			t.Fatalf("Expected loaded, got %+v, %v", got, err)
		}
	}
	if calls != 1 {
		t.Errorf("Expected a single load, got %d", calls)
	}

	none, err := GetOrLoadJSON(c, ctx, "nil", time.Minute, func(context.Context) (*payload, error) { return nil, nil })
	if err != nil || none != nil {
		t.Errorf("Expected cached nil, got %+v, %v", none, err)
	}

	boom := errors.New("boom")
	if _, err := GetOrLoadJSON(c, ctx, "err", time.Minute, func(context.Context) (*payload, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Errorf("Expected load error, got %v", err)
	}
}
