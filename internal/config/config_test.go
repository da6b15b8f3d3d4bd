package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("BILLING_DEDUCTION_INTERVAL", "")
	t.Setenv("BILLING_RATE_PER_MINUTE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Billing.DeductionInterval != 60 {
		t.Fatalf("unexpected deduction interval: %d", cfg.Billing.DeductionInterval)
	}
	if cfg.Voice.MaxReconnects != 5 {
		t.Fatalf("unexpected reconnect cap: %d", cfg.Voice.MaxReconnects)
	}
}

func TestLoadServerAddrPassthrough(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
}

func TestLoadRejectsInvalidInterval(t *testing.T) {
	t.Setenv("BILLING_DEDUCTION_INTERVAL", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero deduction interval")
	}
}

func TestLoadRejectsMalformedInt(t *testing.T) {
	t.Setenv("VOICE_MAX_RECONNECTS", "five")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed VOICE_MAX_RECONNECTS")
	}
}
