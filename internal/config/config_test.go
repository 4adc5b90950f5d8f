package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/phoenix-visual-support/signal-relay/internal/session"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func emptyEnv(string) (string, bool) { return "", false }

func TestDefaultsDev(t *testing.T) {
	cfg, err := load(emptyEnv, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":3000" {
		t.Fatalf("ListenAddr=%q, want :3000", cfg.ListenAddr)
	}
	if cfg.Mode != ModeDev {
		t.Fatalf("mode=%q, want %q", cfg.Mode, ModeDev)
	}
	if cfg.LogFormat != LogFormatText {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatText)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("logLevel=%v, want debug", cfg.LogLevel)
	}
	if cfg.SessionTTL != time.Hour {
		t.Fatalf("SessionTTL=%v, want 1h", cfg.SessionTTL)
	}
	if cfg.SessionSweepInterval != 30*time.Minute {
		t.Fatalf("SessionSweepInterval=%v, want 30m", cfg.SessionSweepInterval)
	}
	if cfg.SessionExpiryBasis != session.ExpireByCreated {
		t.Fatalf("SessionExpiryBasis=%q, want %q", cfg.SessionExpiryBasis, session.ExpireByCreated)
	}
	if cfg.MaxSessions != 0 {
		t.Fatalf("MaxSessions=%d, want 0", cfg.MaxSessions)
	}
	if cfg.MaxSignalingMessageBytes != DefaultMaxSignalingMessageBytes {
		t.Fatalf("MaxSignalingMessageBytes=%d, want %d", cfg.MaxSignalingMessageBytes, DefaultMaxSignalingMessageBytes)
	}
	if cfg.SignalingSendQueue != DefaultSignalingSendQueue {
		t.Fatalf("SignalingSendQueue=%d, want %d", cfg.SignalingSendQueue, DefaultSignalingSendQueue)
	}
	if cfg.TURNREST.Enabled() {
		t.Fatalf("TURN REST enabled by default")
	}
	if err := cfg.ICEConfigError(); err != nil {
		t.Fatalf("ICEConfigError=%v, want nil", err)
	}
	if len(cfg.ICEServers) != 0 {
		t.Fatalf("ICEServers=%v, want none", cfg.ICEServers)
	}
}

func TestDefaultsProdWhenModeFlagSet(t *testing.T) {
	cfg, err := load(emptyEnv, []string{"--mode", "prod"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeProd {
		t.Fatalf("mode=%q, want %q", cfg.Mode, ModeProd)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatJSON)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("logLevel=%v, want info", cfg.LogLevel)
	}
}

func TestPortAndListenAddr(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{envVarPort: "8080"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("ListenAddr=%q, want :8080", cfg.ListenAddr)
	}

	cfg, err = load(lookupMap(map[string]string{
		envVarPort:       "8080",
		envVarListenAddr: "127.0.0.1:9000",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Fatalf("ListenAddr=%q, want listen addr override", cfg.ListenAddr)
	}

	cfg, err = load(lookupMap(map[string]string{envVarPort: "8080"}), []string{"--port", "4000"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":4000" {
		t.Fatalf("ListenAddr=%q, want flag to override env", cfg.ListenAddr)
	}
}

func TestSessionSettingsFromEnv(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarSessionTTL:           "2h",
		envVarSessionSweepInterval: "5m",
		envVarSessionExpiryBasis:   "last_active",
		envVarMaxSessions:          "50",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SessionTTL != 2*time.Hour || cfg.SessionSweepInterval != 5*time.Minute {
		t.Fatalf("ttl=%v sweep=%v", cfg.SessionTTL, cfg.SessionSweepInterval)
	}
	if cfg.SessionExpiryBasis != session.ExpireByLastActive {
		t.Fatalf("basis=%q, want last_active", cfg.SessionExpiryBasis)
	}
	if cfg.MaxSessions != 50 {
		t.Fatalf("MaxSessions=%d, want 50", cfg.MaxSessions)
	}
}

func TestAllowedOriginsNormalized(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envVarAllowedOrigins: " HTTPS://Support.Example.com:443 , http://localhost:3000,*",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := []string{"https://support.example.com", "http://localhost:3000", "*"}
	if strings.Join(cfg.AllowedOrigins, ",") != strings.Join(want, ",") {
		t.Fatalf("AllowedOrigins=%v, want %v", cfg.AllowedOrigins, want)
	}
}

func TestInvalidValues(t *testing.T) {
	cases := []map[string]string{
		{envVarPort: "abc"},
		{envVarPort: "70000"},
		{envVarMode: "staging"},
		{envVarLogFormat: "xml"},
		{envVarLogLevel: "loud"},
		{envVarSessionTTL: "soon"},
		{envVarSessionTTL: "0s"},
		{envVarSessionSweepInterval: "-1m"},
		{envVarSessionExpiryBasis: "never"},
		{envVarMaxSessions: "-1"},
		{envVarAllowedOrigins: "support.example.com"},
		{envVarSignalingWSPingInterval: "2m"},
		{envVarMaxSignalingMessageBytes: "0"},
		{envVarMaxSignalingMessagesPerSecond: "-5"},
		{envVarSignalingSendQueue: "0"},
		{envVarTURNRESTSharedSecret: "s", envVarTURNRESTTTLSeconds: "0"},
		{envVarTURNRESTSharedSecret: "s", envVarTURNRESTUsernamePrefix: "a:b"},
	}
	for _, env := range cases {
		if _, err := load(lookupMap(env), nil); err == nil {
			t.Fatalf("load(%v) succeeded, want error", env)
		}
	}
}

func TestICEConfigErrorDoesNotFailLoad(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envTurnURLs: "turn:turn.example.com:3478",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ICEConfigError() == nil {
		t.Fatalf("expected ICE config error for TURN without credentials")
	}
}

func TestTURNRESTAllowsCredentiallessTURN(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{
		envTurnURLs:                "turn:turn.example.com:3478",
		envVarTURNRESTSharedSecret: "secret",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.ICEConfigError(); err != nil {
		t.Fatalf("ICEConfigError=%v", err)
	}
	if len(cfg.ICEServers) != 1 {
		t.Fatalf("ICEServers=%v, want one TURN server", cfg.ICEServers)
	}
	if cfg.TURNREST.TTLSeconds != DefaultTURNRESTTTLSeconds || cfg.TURNREST.UsernamePrefix != DefaultTURNRESTUsernamePrefix {
		t.Fatalf("TURNREST=%+v, want defaults", cfg.TURNREST)
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []LogFormat{LogFormatText, LogFormatJSON} {
		if _, err := NewLogger(Config{LogFormat: format}); err != nil {
			t.Fatalf("NewLogger(%s): %v", format, err)
		}
	}
	if _, err := NewLogger(Config{LogFormat: "xml"}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
