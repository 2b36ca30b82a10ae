package license

import (
	"testing"
	"time"
)

func TestGenerateKey(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		key, err := GenerateKey()
		if err != nil {
			t.Fatalf("GenerateKey() error: %v", err)
		}
		if !ValidKeyFormat(key) {
			t.Fatalf("GenerateKey() = %q, does not match key format", key)
		}
		if seen[key] {
			t.Fatalf("GenerateKey() produced duplicate key %q", key)
		}
		seen[key] = true
	}
}

func TestValidKeyFormat(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"SNAPPY-1234567890ABCDEF", true},
		{"SNAPPY-0000000000000000", true},
		{"SNAPPY-FFFFFFFFFFFFFFFF", true},
		{"SNAPPY-1234567890abcdef", false}, // lowercase hex
		{"SNAPPY-1234567890ABCDE", false},  // too short
		{"SNAPPY-1234567890ABCDEF0", false},
		{"SNAPPY1234567890ABCDEF", false}, // missing separator
		{"OTHER-1234567890ABCDEF", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidKeyFormat(tt.key); got != tt.valid {
			t.Errorf("ValidKeyFormat(%q) = %v, want %v", tt.key, got, tt.valid)
		}
	}
}

func TestCalculateExpiry(t *testing.T) {
	activated := time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC)
	expires := CalculateExpiry(activated)
	want := time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)
	if !expires.Equal(want) {
		t.Errorf("CalculateExpiry(%v) = %v, want %v", activated, expires, want)
	}
}

func TestCalculateExpiryLeapDay(t *testing.T) {
	// Feb 29 has no counterpart next year; normalization lands on Mar 1.
	activated := time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC)
	expires := CalculateExpiry(activated)
	want := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	if !expires.Equal(want) {
		t.Errorf("CalculateExpiry(leap day) = %v, want %v", expires, want)
	}
}

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      int
	}{
		{"one year out", now.AddDate(1, 0, 0), 365},
		{"exactly one day", now.Add(24 * time.Hour), 1},
		{"partial day rounds up", now.Add(1 * time.Hour), 1},
		{"expires now", now, 0},
		{"already expired", now.Add(-48 * time.Hour), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysRemaining(tt.expiresAt, now); got != tt.want {
				t.Errorf("DaysRemaining() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDaysRemainingNonIncreasing(t *testing.T) {
	expires := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	prev := DaysRemaining(expires, now)
	for i := 0; i < 400; i++ {
		now = now.Add(26 * time.Hour)
		got := DaysRemaining(expires, now)
		if got > prev {
			t.Fatalf("DaysRemaining increased from %d to %d as time advanced", prev, got)
		}
		if got < 0 {
			t.Fatalf("DaysRemaining went negative: %d", got)
		}
		prev = got
	}
	if prev != 0 {
		t.Errorf("DaysRemaining after expiry = %d, want 0", prev)
	}
}
