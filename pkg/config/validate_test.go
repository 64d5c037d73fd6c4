package config

import (
	"strings"
	"testing"
)

func TestValidateDefaults(t *testing.T) {
	if errs := DefaultConfig().Validate(); len(errs) != 0 {
		t.Errorf("expected the default config to validate, got %v", errs)
	}
}

func TestValidateClientURL(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		shouldError bool
	}{
		{"valid ws", "ws://localhost:28080/cable", false},
		{"valid wss", "wss://chat.example.com/cable", false},
		{"http scheme", "http://localhost:28080/cable", true},
		{"garbage", "://not-a-url", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Client.URL = tt.url

			errs := cfg.Validate()
			if tt.shouldError && len(errs) == 0 {
				t.Errorf("expected validation errors for %q", tt.url)
			}
			if !tt.shouldError && len(errs) != 0 {
				t.Errorf("expected no errors for %q, got %v", tt.url, errs)
			}
		})
	}
}

func TestValidateListenAddr(t *testing.T) {
	tests := []struct {
		name        string
		addr        string
		shouldError bool
	}{
		{"port only", ":28080", false},
		{"host and port", "127.0.0.1:28080", false},
		{"no port", "localhost", true},
		{"port out of range", ":99999", true},
		{"port zero", ":0", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Server.ListenAddr = tt.addr

			errs := cfg.Validate()
			if tt.shouldError && len(errs) == 0 {
				t.Errorf("expected validation errors for %q", tt.addr)
			}
			if !tt.shouldError && len(errs) != 0 {
				t.Errorf("expected no errors for %q, got %v", tt.addr, errs)
			}
		})
	}
}

func TestValidateLoggingLevel(t *testing.T) {
	tests := []struct {
		level       string
		shouldError bool
	}{
		{"", false},
		{"info", false},
		{"error", false},
		{"all", false},
		{"verbose", true},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Logging.Level = tt.level

		errs := cfg.Validate()
		if tt.shouldError && len(errs) == 0 {
			t.Errorf("expected validation errors for level %q", tt.level)
		}
		if !tt.shouldError && len(errs) != 0 {
			t.Errorf("expected no errors for level %q, got %v", tt.level, errs)
		}
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := &Config{}

	errs := cfg.Validate()
	if len(errs) < 3 {
		t.Fatalf("expected every empty section reported, got %d: %v", len(errs), errs)
	}
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Path: "client.url", Message: "must not be empty", Hint: "e.g., ws://host/cable"}
	got := err.Error()
	if !strings.Contains(got, "client.url") || !strings.Contains(got, "e.g., ws://host/cable") {
		t.Errorf("expected path and hint in the message, got %q", got)
	}
}
