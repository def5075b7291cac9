package config

import (
	"github.com/pion/webrtc/v4"
)

type RawServerConfig struct {
	Port               *int    `yaml:"port" json:"port"`
	AdminCredential    *string `yaml:"adminCredential" json:"adminCredential"`
	TLSCrtFile         *string `yaml:"tlsCrtFile" json:"tlsCrtFile"`
	TLSKeyFile         *string `yaml:"tlsKeyFile" json:"tlsKeyFile"`
	StatusPushInterval *int    `yaml:"statusPushInterval" json:"statusPushInterval"`
}

func (r RawServerConfig) ToDomain() ServerConfig {
	var cfg ServerConfig
	if r.Port != nil {
		cfg.Port = *r.Port
	}
	cfg.AdminCredential = r.AdminCredential
	cfg.TLSCrtFile = r.TLSCrtFile
	cfg.TLSKeyFile = r.TLSKeyFile
	if r.StatusPushInterval != nil {
		cfg.StatusPushInterval = *r.StatusPushInterval
	}
	return cfg
}

type RawStoreConfig struct {
	Backend       *string `yaml:"backend" json:"backend"`
	RedisAddr     *string `yaml:"redisAddr" json:"redisAddr"`
	RedisPassword *string `yaml:"redisPassword" json:"redisPassword"`
	RedisDB       *int    `yaml:"redisDb" json:"redisDb"`
	KeyPrefix     *string `yaml:"keyPrefix" json:"keyPrefix"`
}

func (r RawStoreConfig) ToDomain() StoreConfig {
	var cfg StoreConfig
	if r.Backend != nil {
		cfg.Backend = *r.Backend
	}
	if r.RedisAddr != nil {
		cfg.RedisAddr = *r.RedisAddr
	}
	if r.RedisPassword != nil {
		cfg.RedisPassword = *r.RedisPassword
	}
	if r.RedisDB != nil {
		cfg.RedisDB = *r.RedisDB
	}
	if r.KeyPrefix != nil {
		cfg.KeyPrefix = *r.KeyPrefix
	}
	return cfg
}

type RawWebRTCConfig struct {
	PortMin    *uint16         `yaml:"portMin" json:"portMin"`
	PortMax    *uint16         `yaml:"portMax" json:"portMax"`
	ICEServers *[]RawICEServer `yaml:"iceServers" json:"iceServers"`
}

type RawICEServer struct {
	URLs       []string `yaml:"urls" json:"urls"`
	Username   string   `yaml:"username" json:"username"`
	Credential string   `yaml:"credential" json:"credential"`
}

func (r RawWebRTCConfig) ToDomain() WebRTCConfig {
	var cfg WebRTCConfig
	if r.PortMin != nil {
		cfg.PortMin = *r.PortMin
	}
	if r.PortMax != nil {
		cfg.PortMax = *r.PortMax
	}
	if r.ICEServers != nil {
		cfg.ICEServers = parseICEServers(*r.ICEServers)
	}
	return cfg
}

type RawSignalingConfig struct {
	StalenessWindow    *int `yaml:"stalenessWindow" json:"stalenessWindow"`
	NegotiationTimeout *int `yaml:"negotiationTimeout" json:"negotiationTimeout"`
	ReconcileInterval  *int `yaml:"reconcileInterval" json:"reconcileInterval"`
	SignalWindow       *int `yaml:"signalWindow" json:"signalWindow"`
}

func (r RawSignalingConfig) ToDomain() SignalingConfig {
	var cfg SignalingConfig
	if r.StalenessWindow != nil {
		cfg.StalenessWindow = *r.StalenessWindow
	}
	if r.NegotiationTimeout != nil {
		cfg.NegotiationTimeout = *r.NegotiationTimeout
	}
	if r.ReconcileInterval != nil {
		cfg.ReconcileInterval = *r.ReconcileInterval
	}
	if r.SignalWindow != nil {
		cfg.SignalWindow = *r.SignalWindow
	}
	return cfg
}

func parseICEServers(raw []RawICEServer) []webrtc.ICEServer {
	result := make([]webrtc.ICEServer, 0, len(raw))
	for _, s := range raw {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
		}
		if s.Credential != "" {
			server.Credential = s.Credential
		}
		result = append(result, server)
	}
	return result
}
