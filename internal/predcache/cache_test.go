package predcache

import (
	"testing"
	"time"
)

func TestCache_PutGet(t *testing.T) {
	t.Helper()

	c := New(DefaultTTL)
	c.Put("https://bad.example/login", true)

	verdict, ok := c.Get("https://bad.example/login")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !verdict.IsPhishing {
		t.Error("expected phishing verdict")
	}
}

func TestCache_NormalizesKeys(t *testing.T) {
	t.Helper()

	c := New(DefaultTTL)
	c.Put("HTTPS://Bad.Example/Login", false)

	if _, ok := c.Get("  https://bad.example/login "); !ok {
		t.Fatal("expected hit for case and whitespace variants of the same link")
	}
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	t.Helper()

	now := time.Now()
	c := New(10 * time.Minute)
	c.SetNowFunc(func() time.Time { return now })

	c.Put("https://bad.example", true)

	// Just inside the TTL.
	now = now.Add(10 * time.Minute)
	if _, ok := c.Get("https://bad.example"); !ok {
		t.Fatal("expected hit at exactly the TTL boundary")
	}

	// Just past it.
	now = now.Add(time.Second)
	if _, ok := c.Get("https://bad.example"); ok {
		t.Fatal("expected miss after TTL expiry")
	}
	if c.Len() != 0 {
		t.Errorf("expected lazy eviction to drop the entry, got %d entries", c.Len())
	}
}

func TestCache_PutKeepsNewerObservation(t *testing.T) {
	t.Helper()

	now := time.Now()
	c := New(DefaultTTL)
	c.SetNowFunc(func() time.Time { return now })

	c.Put("https://bad.example", true)

	// A write with the same clock reading must not downgrade the verdict.
	c.Put("https://bad.example", false)

	verdict, ok := c.Get("https://bad.example")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !verdict.IsPhishing {
		t.Error("expected the earlier observation to stand")
	}

	// A strictly newer observation replaces it.
	now = now.Add(time.Second)
	c.Put("https://bad.example", false)

	verdict, _ = c.Get("https://bad.example")
	if verdict.IsPhishing {
		t.Error("expected the newer observation to win")
	}
}

func TestCache_NonPositiveTTLUsesDefault(t *testing.T) {
	t.Helper()

	c := New(0)
	if c.ttl != DefaultTTL {
		t.Errorf("expected default TTL %v, got %v", DefaultTTL, c.ttl)
	}
}
