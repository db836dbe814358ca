package limiter

import (
	"context"
	"fmt"
	"testing"
	"time"

	memoryCache "github.com/imovelbot/wa-messaging-service/internal/cache/memory"
)

func TestPerContactGate(t *testing.T) {
	l := New(memoryCache.NewMemoryCache())
	ctx := context.Background()

	ok, err := l.Allow(ctx, 1, "5511999990000", 2, 60)
	if err != nil || !ok {
		t.Fatalf("first permit = %t, %v; want allowed", ok, err)
	}
	ok, err = l.Allow(ctx, 1, "5511999990000", 2, 60)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second permit inside the interval was allowed")
	}

	// A different contact has its own interval.
	ok, err = l.Allow(ctx, 1, "5511999990001", 2, 60)
	if err != nil || !ok {
		t.Errorf("other contact permit = %t, %v; want allowed", ok, err)
	}
}

func TestPerContactGateIsTenantScoped(t *testing.T) {
	l := New(memoryCache.NewMemoryCache())
	ctx := context.Background()

	if ok, _ := l.Allow(ctx, 1, "5511999990000", 2, 60); !ok {
		t.Fatal("tenant 1 permit denied")
	}
	if ok, _ := l.Allow(ctx, 2, "5511999990000", 2, 60); !ok {
		t.Error("tenant 2 permit denied for the same recipient")
	}
}

func TestGlobalGateCeiling(t *testing.T) {
	l := New(memoryCache.NewMemoryCache())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		waID := fmt.Sprintf("55119999900%02d", i)
		if ok, err := l.Allow(ctx, 1, waID, 1, 3); err != nil || !ok {
			t.Fatalf("permit %d = %t, %v; want allowed", i, ok, err)
		}
	}
	ok, err := l.Allow(ctx, 1, "5511999990099", 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("permit above the per-minute ceiling was allowed")
	}
}

func TestGlobalGateBucketsRoll(t *testing.T) {
	l := New(memoryCache.NewMemoryCache())
	base := time.Date(2026, 9, 1, 12, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return base }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		waID := fmt.Sprintf("55119999901%02d", i)
		if ok, _ := l.Allow(ctx, 1, waID, 1, 2); !ok {
			t.Fatalf("permit %d denied", i)
		}
	}
	if ok, _ := l.Allow(ctx, 1, "5511999990199", 1, 2); ok {
		t.Fatal("permit above the ceiling was allowed")
	}

	// Next minute bucket resets the counter.
	l.now = func() time.Time { return base.Add(time.Minute) }
	if ok, err := l.Allow(ctx, 1, "5511999990198", 1, 2); err != nil || !ok {
		t.Errorf("permit in the next minute = %t, %v; want allowed", ok, err)
	}
}
