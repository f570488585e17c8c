package application

import (
	"errors"
	"testing"
	"time"
)

func countingLoader(calls *int) func(string) (*time.Location, error) {
	return func(name string) (*time.Location, error) {
		*calls++
		if name == "Mars/Olympus" {
			return nil, errors.New("unknown time zone")
		}
		return time.FixedZone(name, 0), nil
	}
}

func TestZoneCacheMemoisesLookups(t *testing.T) {
	current := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newZoneCache(time.Minute, 4, func() time.Time { return current })
	calls := 0
	cache.load = countingLoader(&calls)

	for i := 0; i < 3; i++ {
		loc, err := cache.Lookup("Europe/Berlin")
		if err != nil || loc.String() != "Europe/Berlin" {
			t.Fatalf("Lookup = %v, %v", loc, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single load, got %d", calls)
	}

	for i := 0; i < 2; i++ {
		if _, err := cache.Lookup("Mars/Olympus"); err == nil {
			t.Fatalf("expected invalid zone to fail")
		}
	}
	if calls != 2 {
		t.Fatalf("expected invalid zone to be cached as a miss, got %d loads", calls)
	}
}

func TestZoneCacheExpiresEntries(t *testing.T) {
	current := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	cache := newZoneCache(time.Second, 4, func() time.Time { return current })
	calls := 0
	cache.load = countingLoader(&calls)

	_, _ = cache.Lookup("UTC")
	current = current.Add(2 * time.Second)
	_, _ = cache.Lookup("UTC")
	if calls != 2 {
		t.Fatalf("expected reload after expiry, got %d loads", calls)
	}
}

func TestZoneCacheBoundsEntries(t *testing.T) {
	cache := newZoneCache(time.Minute, 2, time.Now)
	calls := 0
	cache.load = countingLoader(&calls)

	for _, name := range []string{"A/One", "B/Two", "C/Three"} {
		_, _ = cache.Lookup(name)
	}
	if got := cache.Len(); got != 2 {
		t.Fatalf("expected cache bounded to 2 entries, got %d", got)
	}
}
