package config

import (
	"testing"
	"time"
)

func TestParseOrigins(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty allows all", "", nil},
		{"single", "https://exam.example.com", []string{"https://exam.example.com"}},
		{"trims and skips blanks", " https://a.test , ,https://b.test ", []string{"https://a.test", "https://b.test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseOrigins(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("origin %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL_SECONDS", "45")
	t.Setenv("PROCTOR_HEARTBEAT_SECONDS", "not-a-number")
	t.Setenv("ANSWER_RATE_PER_SECOND", "2.5")
	t.Setenv("PROCTOR_RELAY", "false")

	cfg := Load()

	if cfg.SweepInterval != 45*time.Second {
		t.Errorf("expected sweep interval 45s, got %s", cfg.SweepInterval)
	}
	if cfg.ProctorHeartbeat != 25*time.Second {
		t.Errorf("expected heartbeat fallback 25s, got %s", cfg.ProctorHeartbeat)
	}
	if cfg.AnswerRatePerSecond != 2.5 {
		t.Errorf("expected answer rate 2.5, got %v", cfg.AnswerRatePerSecond)
	}
	if cfg.ProctorRelay {
		t.Error("expected proctor relay to be disabled")
	}
}

func TestCacheKeys(t *testing.T) {
	if got := CacheKey.ProctorChannel("e1"); got != "proctor:exam:e1" {
		t.Errorf("unexpected proctor channel %q", got)
	}
	if got := CacheKey.PaperItemsKey("p1"); got != "paper:p1:items" {
		t.Errorf("unexpected paper key %q", got)
	}
}
