package service

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestIDGenerator_Format(t *testing.T) {
	gen := NewIDGenerator(time.UTC)
	gen.WithClock(func() time.Time {
		return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	})

	id := gen.Generate()
	if !strings.HasPrefix(id, "TR-20250101-") {
		t.Fatalf("expected date-stamped prefix, got %s", id)
	}

	pattern := regexp.MustCompile(`^TR-\d{8}-[0-9A-Z]{6}$`)
	if !pattern.MatchString(id) {
		t.Fatalf("id %s does not match expected format", id)
	}
}

func TestIDGenerator_DatesInConfiguredZone(t *testing.T) {
	manila := time.FixedZone("PHT", 8*60*60)
	gen := NewIDGenerator(manila)
	// 23:00 UTC on Dec 31 is already Jan 1 in Manila.
	gen.WithClock(func() time.Time {
		return time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)
	})

	if id := gen.Generate(); !strings.HasPrefix(id, "TR-20250101-") {
		t.Fatalf("expected Manila-local date, got %s", id)
	}
}

func TestIDGenerator_Unique(t *testing.T) {
	gen := NewIDGenerator(time.UTC)

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := gen.Generate()
		if _, dup := seen[id]; dup {
			t.Fatalf("generated duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}
