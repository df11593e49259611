package config

import (
	"testing"
	"time"

	"tvcast/receiver/internal/domain"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"--signal-url", "ws://localhost:8080/ws", "--id", "tv-1"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Identity != (domain.Identity{ID: "tv-1"}) {
		t.Errorf("unexpected identity %+v", cfg.Identity)
	}
	if len(cfg.ICEServers) != 1 || cfg.ICEServers[0].URL != "stun:stun.l.google.com:19302" {
		t.Errorf("unexpected ICE servers %+v", cfg.ICEServers)
	}
	if cfg.PingInterval != 30*time.Second {
		t.Errorf("expected 30s ping interval, got %s", cfg.PingInterval)
	}
	if cfg.ReconnectDelay != 0 || cfg.ReconnectAttempts != 0 {
		t.Errorf("expected reconnect disabled, got %s/%d", cfg.ReconnectDelay, cfg.ReconnectAttempts)
	}
	if cfg.Output != "-" || cfg.StatusAddr != "" {
		t.Errorf("unexpected output/status %q/%q", cfg.Output, cfg.StatusAddr)
	}
	if cfg.LogLevel != zerolog.InfoLevel || cfg.EngineLogLevel != zerolog.WarnLevel {
		t.Errorf("unexpected log levels %s/%s", cfg.LogLevel, cfg.EngineLogLevel)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("RECEIVER_SIGNAL_URL", "wss://signal.example/ws")
	t.Setenv("RECEIVER_ID", "den")
	t.Setenv("RECEIVER_NAME", "Den TV")
	t.Setenv("RECEIVER_ICE_SERVERS", "stun:a:3478,turn:b:3478")
	t.Setenv("RECEIVER_RECONNECT_DELAY", "2s")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SignalURL != "wss://signal.example/ws" || cfg.Identity.Name != "Den TV" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.ReconnectDelay != 2*time.Second {
		t.Errorf("expected 2s reconnect delay, got %s", cfg.ReconnectDelay)
	}
	want := []domain.ICEServer{{URL: "stun:a:3478"}, {URL: "turn:b:3478"}}
	if len(cfg.ICEServers) != 2 || cfg.ICEServers[0] != want[0] || cfg.ICEServers[1] != want[1] {
		t.Errorf("expected %+v, got %+v", want, cfg.ICEServers)
	}
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("RECEIVER_ID", "from-env")

	cfg, err := Load([]string{"--signal-url", "ws://h/ws", "--id", "from-flag", "--log-level", "debug"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Identity.ID != "from-flag" {
		t.Errorf("expected flag to win, got %q", cfg.Identity.ID)
	}
	if cfg.LogLevel != zerolog.DebugLevel {
		t.Errorf("expected debug, got %s", cfg.LogLevel)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string][]string{
		"missing url":       {"--id", "tv"},
		"missing id":        {"--signal-url", "ws://h/ws"},
		"http scheme":       {"--signal-url", "http://h/ws", "--id", "tv"},
		"bad log level":     {"--signal-url", "ws://h/ws", "--id", "tv", "--log-level", "loud"},
		"negative attempts": {"--signal-url", "ws://h/ws", "--id", "tv", "--reconnect-attempts", "-1"},
		"unknown flag":      {"--signal-url", "ws://h/ws", "--id", "tv", "--bogus"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(args); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_Help(t *testing.T) {
	if _, err := Load([]string{"--help"}); !errors.Is(err, pflag.ErrHelp) {
		t.Errorf("expected pflag.ErrHelp, got %v", err)
	}
}
