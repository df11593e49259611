package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"tvcast/receiver/internal/domain"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. RECEIVER_SIGNAL_URL.
const EnvPrefix = "RECEIVER"

const helpText = `receiver - TV-side WebRTC receiver driven by a signaling server

Usage:
  receiver --signal-url wss://host/ws --id living-room [options]

The raw H264 stream is written to --output (stdout by default). Pipe to
ffplay or ffmpeg for playback or recording. Every option can also be set
through a RECEIVER_* environment variable or a .env file, e.g.
RECEIVER_SIGNAL_URL or RECEIVER_RECONNECT_DELAY.

Examples:
  # Live playback
  receiver --signal-url ws://localhost:8080/ws --id tv-1 | ffplay -f h264 -

Options:
`

// Config holds the application configuration.
type Config struct {
	SignalURL         string
	Identity          domain.Identity
	ICEServers        []domain.ICEServer
	PingInterval      time.Duration
	ReconnectDelay    time.Duration
	ReconnectAttempts int
	StatusAddr        string
	Output            string
	LogLevel          zerolog.Level
	EngineLogLevel    zerolog.Level
}

// Load reads configuration from flags, environment variables and a .env
// file (if present). Flags win over the environment, which wins over
// defaults. pflag.ErrHelp is returned as is when --help was requested.
func Load(args []string) (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("receiver", pflag.ContinueOnError)
	fs.String("signal-url", "", "Signaling server WebSocket URL (required)")
	fs.String("id", "", "Receiver identifier announced to the server (required)")
	fs.String("name", "", "Human readable receiver name")
	fs.StringSlice("ice-servers", []string{"stun:stun.l.google.com:19302"}, "STUN/TURN server URLs")
	fs.Duration("ping-interval", 30*time.Second, "WebSocket keepalive period, 0 disables")
	fs.Duration("reconnect-delay", 0, "Delay between control channel reconnects, 0 disables reconnecting")
	fs.Int("reconnect-attempts", 0, "Consecutive failed reconnects before giving up, 0 means unlimited")
	fs.String("status-addr", "", "Listen address for the status endpoint, empty disables it")
	fs.StringP("output", "o", "-", "File to write the H264 stream to, - for stdout")
	fs.String("log-level", "info", "Log level")
	fs.String("engine-log-level", "warn", "Log level for the WebRTC engine")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, helpText)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}

	cfg := &Config{
		SignalURL: v.GetString("signal-url"),
		Identity: domain.Identity{
			ID:   v.GetString("id"),
			Name: v.GetString("name"),
		},
		ICEServers:        iceServers(v.GetStringSlice("ice-servers")),
		PingInterval:      v.GetDuration("ping-interval"),
		ReconnectDelay:    v.GetDuration("reconnect-delay"),
		ReconnectAttempts: v.GetInt("reconnect-attempts"),
		StatusAddr:        v.GetString("status-addr"),
		Output:            v.GetString("output"),
	}

	var err error
	if cfg.LogLevel, err = zerolog.ParseLevel(v.GetString("log-level")); err != nil {
		return nil, errors.Wrap(err, "log-level")
	}
	if cfg.EngineLogLevel, err = zerolog.ParseLevel(v.GetString("engine-log-level")); err != nil {
		return nil, errors.Wrap(err, "engine-log-level")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SignalURL == "" {
		return errors.New("--signal-url (RECEIVER_SIGNAL_URL) is required")
	}
	u, err := url.Parse(c.SignalURL)
	if err != nil {
		return errors.Wrap(err, "signal-url")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.Errorf("signal-url: unsupported scheme %q", u.Scheme)
	}
	if c.Identity.ID == "" {
		return errors.New("--id (RECEIVER_ID) is required")
	}
	if c.PingInterval < 0 || c.ReconnectDelay < 0 {
		return errors.New("durations must not be negative")
	}
	if c.ReconnectAttempts < 0 {
		return errors.New("reconnect-attempts must not be negative")
	}
	return nil
}

// iceServers accepts both repeated flags and a comma separated env value.
func iceServers(raw []string) []domain.ICEServer {
	var servers []domain.ICEServer
	for _, entry := range raw {
		for _, u := range strings.Split(entry, ",") {
			if u = strings.TrimSpace(u); u != "" {
				servers = append(servers, domain.ICEServer{URL: u})
			}
		}
	}
	return servers
}
