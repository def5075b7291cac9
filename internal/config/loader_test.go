package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadAppConfigDefaultsWhenDirEmpty(t *testing.T) {
	cfg, err := LoadAppConfig(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	defaults := DefaultAppConfig()
	if cfg.Server.Port != defaults.Server.Port {
		t.Errorf("expected default port %d, got %d", defaults.Server.Port, cfg.Server.Port)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("expected memory backend, got %s", cfg.Store.Backend)
	}
	if cfg.Signaling.NegotiationTimeout != 30000 {
		t.Errorf("expected 30s negotiation timeout, got %d", cfg.Signaling.NegotiationTimeout)
	}
}

func TestLoadAppConfigMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "server.yaml", "port: 9999\nstatusPushInterval: 1000\n")
	writeConfigFile(t, dir, "signaling.yaml", "negotiationTimeout: 5000\n")

	cfg, err := LoadAppConfig(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.StatusPushInterval != 1000 {
		t.Errorf("expected push interval 1000, got %d", cfg.Server.StatusPushInterval)
	}
	if cfg.Signaling.NegotiationTimeout != 5000 {
		t.Errorf("expected negotiation timeout 5000, got %d", cfg.Signaling.NegotiationTimeout)
	}
	// Untouched sections keep defaults.
	if cfg.Signaling.StalenessWindow != 120000 {
		t.Errorf("expected default staleness window, got %d", cfg.Signaling.StalenessWindow)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("expected default backend, got %s", cfg.Store.Backend)
	}
}

func TestLoadAppConfigReadsJSONFallback(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "store.json", `{"backend":"redis","redisAddr":"redis:6379","keyPrefix":"test"}`)

	cfg, err := LoadAppConfig(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Store.Backend != "redis" {
		t.Errorf("expected redis backend, got %s", cfg.Store.Backend)
	}
	if cfg.Store.RedisAddr != "redis:6379" {
		t.Errorf("expected redis addr, got %s", cfg.Store.RedisAddr)
	}
	if cfg.Store.KeyPrefix != "test" {
		t.Errorf("expected key prefix test, got %s", cfg.Store.KeyPrefix)
	}
}

func TestLoadAppConfigParsesICEServers(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "webrtc.yaml", `
portMin: 40000
portMax: 41000
iceServers:
  - urls:
      - stun:stun.example.org:3478
  - urls:
      - turn:turn.example.org:3478
    username: u
    credential: p
`)

	cfg, err := LoadAppConfig(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.WebRTC.PortMin != 40000 || cfg.WebRTC.PortMax != 41000 {
		t.Errorf("unexpected port range %d-%d", cfg.WebRTC.PortMin, cfg.WebRTC.PortMax)
	}
	if len(cfg.WebRTC.ICEServers) != 2 {
		t.Fatalf("expected 2 ice servers, got %d", len(cfg.WebRTC.ICEServers))
	}
	if cfg.WebRTC.ICEServers[1].Username != "u" {
		t.Errorf("expected username u, got %v", cfg.WebRTC.ICEServers[1].Username)
	}
}
