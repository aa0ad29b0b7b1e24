package config

import "testing"

func TestParseCSV(t *testing.T) {
	got := parseCSV("a, b, ,c,,")
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected values: %#v", got)
	}
}

func TestParseAnyCSV(t *testing.T) {
	raw := []any{"x", " ", "y"}
	got := parseAnyCSV(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0] != "x" || got[1] != "y" {
		t.Fatalf("unexpected values: %#v", got)
	}
}

func TestLoadWaterKnobDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("CONFIG_PATH", "")
	cfg, _ := Load("api", 8080)
	if cfg.ManualOverrideSec != 300 {
		t.Fatalf("ManualOverrideSec = %d", cfg.ManualOverrideSec)
	}
	if cfg.PredictJitterPct != 0.05 {
		t.Fatalf("PredictJitterPct = %v", cfg.PredictJitterPct)
	}
	if cfg.AnomalyCooldownSec != 300 || cfg.ScheduleCacheSec != 60 || cfg.DemandCacheSec != 120 {
		t.Fatalf("unexpected cache/cooldown defaults: %+v", cfg)
	}
}

func TestLoadWaterKnobEnvOverride(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("MANUAL_OVERRIDE_WINDOW_SECONDS", "60")
	t.Setenv("PREDICT_JITTER_PCT", "0")
	t.Setenv("ANOMALY_COOLDOWN_SECONDS", "30")
	cfg, problems := Load("api", 8080)
	for _, p := range problems {
		if p.Field == "MANUAL_OVERRIDE_WINDOW_SECONDS" || p.Field == "PREDICT_JITTER_PCT" || p.Field == "ANOMALY_COOLDOWN_SECONDS" {
			t.Fatalf("unexpected problem: %+v", p)
		}
	}
	if cfg.ManualOverrideSec != 60 || cfg.PredictJitterPct != 0 || cfg.AnomalyCooldownSec != 30 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadJitter(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("PREDICT_JITTER_PCT", "1.5")
	cfg, problems := Load("api", 8080)
	found := false
	for _, p := range problems {
		if p.Field == "PREDICT_JITTER_PCT" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a PREDICT_JITTER_PCT problem")
	}
	if cfg.PredictJitterPct != 0.05 {
		t.Fatalf("expected fallback jitter, got %v", cfg.PredictJitterPct)
	}
}
