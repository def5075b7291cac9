package config

import (
	"time"

	"github.com/pion/webrtc/v4"
)

type AppConfig struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	WebRTC    WebRTCConfig    `json:"webrtc" yaml:"webrtc"`
	Signaling SignalingConfig `json:"signaling" yaml:"signaling"`
}

type ServerConfig struct {
	// Port is the TCP port the HTTP server listens on.
	Port int `json:"port" yaml:"port"`

	// AdminCredential protects the admin endpoints with basic auth.
	// If nil, the admin endpoints are disabled.
	AdminCredential *string `json:"adminCredential" yaml:"adminCredential"`

	TLSCrtFile *string `json:"tlsCrtFile" yaml:"tlsCrtFile"`
	TLSKeyFile *string `json:"tlsKeyFile" yaml:"tlsKeyFile"`

	// StatusPushInterval is how often (in milliseconds) the status socket
	// pushes roster snapshots to connected clients.
	StatusPushInterval int `json:"statusPushInterval" yaml:"statusPushInterval"`
}

type StoreConfig struct {
	// Backend selects the document store implementation: "memory" or "redis".
	Backend string `json:"backend" yaml:"backend"`

	RedisAddr     string `json:"redisAddr" yaml:"redisAddr"`
	RedisPassword string `json:"redisPassword" yaml:"redisPassword"`
	RedisDB       int    `json:"redisDb" yaml:"redisDb"`

	// KeyPrefix namespaces every key the redis backend writes.
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

type WebRTCConfig struct {
	// PortMin and PortMax bound the ephemeral UDP port range used for media.
	// If 0, the system picks any available port.
	PortMin uint16 `json:"portMin" yaml:"portMin"`
	PortMax uint16 `json:"portMax" yaml:"portMax"`

	ICEServers []webrtc.ICEServer `json:"iceServers" yaml:"iceServers"`
}

type SignalingConfig struct {
	// StalenessWindow (milliseconds) is the age beyond which a received
	// signal is discarded unprocessed.
	StalenessWindow int `json:"stalenessWindow" yaml:"stalenessWindow"`

	// NegotiationTimeout (milliseconds) fails a session that never reaches
	// the connected state.
	NegotiationTimeout int `json:"negotiationTimeout" yaml:"negotiationTimeout"`

	// ReconcileInterval (milliseconds) is how often the roster is swept
	// against live sessions.
	ReconcileInterval int `json:"reconcileInterval" yaml:"reconcileInterval"`

	// SignalWindow bounds how much backlog a new subscription replays.
	SignalWindow int `json:"signalWindow" yaml:"signalWindow"`
}

func (c SignalingConfig) StalenessWindowDuration() time.Duration {
	return time.Duration(c.StalenessWindow) * time.Millisecond
}

func (c SignalingConfig) NegotiationTimeoutDuration() time.Duration {
	return time.Duration(c.NegotiationTimeout) * time.Millisecond
}

func (c SignalingConfig) ReconcileIntervalDuration() time.Duration {
	return time.Duration(c.ReconcileInterval) * time.Millisecond
}

func (c ServerConfig) StatusPushIntervalDuration() time.Duration {
	return time.Duration(c.StatusPushInterval) * time.Millisecond
}

func DefaultAppConfig() AppConfig {
	adminPassword := "live"
	return AppConfig{
		Server: ServerConfig{
			Port:               8000,
			AdminCredential:    &adminPassword,
			TLSCrtFile:         nil,
			TLSKeyFile:         nil,
			StatusPushInterval: 3000,
		},
		Store: StoreConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			KeyPrefix: "unhinged",
		},
		WebRTC: WebRTCConfig{
			PortMin: 10000,
			PortMax: 20000,
			ICEServers: []webrtc.ICEServer{
				{URLs: []string{"stun:stun.l.google.com:19302"}},
			},
		},
		Signaling: SignalingConfig{
			StalenessWindow:    120000,
			NegotiationTimeout: 30000,
			ReconcileInterval:  15000,
			SignalWindow:       10,
		},
	}
}
