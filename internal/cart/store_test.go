package cart

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type fakeKV struct {
	values map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	val, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return val, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value any, _ time.Duration) error {
	f.values[key] = value.(string)
	return nil
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeKV) CartKey(sessionID string) string {
	return "sf:session:" + sessionID + ":cart"
}

func TestRedisStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &redisStore{kv: newFakeKV(), ttl: time.Minute}

	in := Cart{Lines: []Line{{
		ProductID: "p1",
		Name:      "Widget",
		UnitPrice: decimal.RequireFromString("12.50"),
		Quantity:  2,
	}}}
	if err := store.Save(ctx, "s1", in); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	out, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(out.Lines) != 1 {
		t.Fatalf("expected one line, got %d", len(out.Lines))
	}
	if !out.Lines[0].UnitPrice.Equal(in.Lines[0].UnitPrice) {
		t.Fatalf("unit price mismatch: %s", out.Lines[0].UnitPrice)
	}
	if out.AmountCents() != 2500 {
		t.Fatalf("expected 2500 cents, got %d", out.AmountCents())
	}
}

func TestRedisStoreMissingKeyYieldsEmptyCart(t *testing.T) {
	t.Parallel()

	store := &redisStore{kv: newFakeKV(), ttl: time.Minute}
	cart, err := store.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cart.IsEmpty() {
		t.Fatal("expected empty cart for missing key")
	}
}

func TestRedisStoreCorruptedPayloadYieldsEmptyCart(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	kv.values[kv.CartKey("s1")] = "{not valid json"
	store := &redisStore{kv: kv, ttl: time.Minute}

	cart, err := store.Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cart.IsEmpty() {
		t.Fatal("expected corrupted payload to be discarded")
	}
}

func TestRedisStoreClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := newFakeKV()
	store := &redisStore{kv: kv, ttl: time.Minute}

	if err := store.Save(ctx, "s1", Cart{Lines: []Line{{ProductID: "p", Name: "x", UnitPrice: decimal.NewFromInt(1), Quantity: 1}}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Clear(ctx, "s1"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, ok := kv.values[kv.CartKey("s1")]; ok {
		t.Fatal("expected key deleted")
	}
}
