package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.UpdateInterval() != time.Minute {
		t.Errorf("UpdateInterval() = %s, want 1m", cfg.UpdateInterval())
	}
	if cfg.Trading.AmountPlaces != 3 || cfg.Trading.TriggerConcurrency != 8 {
		t.Errorf("trading defaults = %+v", cfg.Trading)
	}
	if cfg.StartingCash().String() != "100" {
		t.Errorf("StartingCash() = %s, want 100", cfg.StartingCash())
	}
	if cfg.Retention() != 30*24*time.Hour {
		t.Errorf("Retention() = %s", cfg.Retention())
	}
	if v := cfg.Validator(); v.MinAmount.String() != "0.001" || !v.FeeRate.IsZero() {
		t.Errorf("Validator() = %+v", v)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name, yaml, want string
	}{
		{"bad interval", "market: {interval: soon}", "market.interval"},
		{"negative interval", "market: {interval: -5s}", "market.interval"},
		{"fee too high", "trading: {fee_rate: 1.5}", "fee_rate"},
		{"places too high", "trading: {amount_places: 12}", "amount_places"},
		{"bad format", "logging: {format: xml}", "logging.format"},
		{"telegram without token", "telegram: {enabled: true, chat_id: 1}", "bot_token"},
		{"telegram without chat", "telegram: {enabled: true, bot_token: x}", "chat_id"},
		{"headlines without key", "headlines: {enabled: true}", "headlines.api_key"},
		{"bad headlines timeout", "headlines: {timeout: later}", "headlines.timeout"},
		{"not yaml", "market: [", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Parse() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
market:
  interval: 45s
  seed: 7
trading:
  starting_cash: 1000
  fee_rate: 0.001
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.UpdateInterval() != 45*time.Second || cfg.Market.Seed != 7 {
		t.Errorf("market = %+v", cfg.Market)
	}
	if cfg.FeeRate().String() != "0.001" || cfg.StartingCash().String() != "1000" {
		t.Errorf("fee=%s cash=%s", cfg.FeeRate(), cfg.StartingCash())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}
