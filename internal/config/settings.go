// Package config loads and validates the proxy's settings from the nested
// "Hl7" JSON document described in spec.md §6.
package config

import (
	"fmt"
	"strings"
)

// Mode selects which of the three operational modes the process runs.
type Mode string

// Supported modes (spec.md §3, §6).
const (
	ModeServer Mode = "Server"
	ModeClient Mode = "Client"
	ModeProxy  Mode = "Proxy"
)

// ProxyDirection selects which side the proxy listens on and which side it
// dials (spec.md §3, §4.4).
type ProxyDirection string

// Supported proxy directions.
const (
	// DirListenerToClient: proxy listens for the analyzer, dials the LIS.
	// This is Policy A and the default.
	DirListenerToClient ProxyDirection = "ListenerToClient"

	// DirClientToListener: proxy listens for the LIS, dials the analyzer.
	// This is Policy B.
	DirClientToListener ProxyDirection = "ClientToListener"
)

// Settings holds the process's immutable-after-start configuration
// (spec.md §3 "Settings", §6 "Configuration surface").
type Settings struct {
	Port       int    `mapstructure:"Port"`
	ClientHost string `mapstructure:"ClientHost"`
	ClientPort int    `mapstructure:"ClientPort"`

	SendingApplication   string `mapstructure:"SendingApplication"`
	SendingFacility      string `mapstructure:"SendingFacility"`
	ReceivingApplication string `mapstructure:"ReceivingApplication"`
	ReceivingFacility    string `mapstructure:"ReceivingFacility"`

	LogFilePath string `mapstructure:"LogFilePath"`

	AllowedEvents []string `mapstructure:"AllowedEvents"`

	AckMode                string `mapstructure:"AckMode"`
	MessageDateTimeFormat  string `mapstructure:"MessageDateTimeFormat"`
	DisconnectAfterAck     bool   `mapstructure:"DisconnectAfterAck"`
	IsServer               bool   `mapstructure:"IsServer"`
	Mode                   Mode   `mapstructure:"Mode"`
	ProxyDirection         ProxyDirection `mapstructure:"ProxyDirection"`

	// AdminAddr, when non-empty, starts the admin HTTP listener
	// (internal/adminhttp) serving /metrics and /healthz. Not part of
	// spec.md's original config table; a DOMAIN STACK addition (SPEC_FULL.md).
	AdminAddr string `mapstructure:"AdminAddr"`

	// MaxQueueDepth caps each retry queue's length. 0 means unbounded,
	// matching spec.md's reference behavior. A SPEC_FULL.md addition
	// resolving the §9 "Queue with backpressure" Open Question.
	MaxQueueDepth int `mapstructure:"MaxQueueDepth"`
}

// Defaults mirrors spec.md §6's Default column.
func Defaults() Settings {
	return Settings{
		Port:                  5100,
		ClientHost:            "127.0.0.1",
		ClientPort:            5200,
		AllowedEvents:         []string{},
		AckMode:               "AA",
		MessageDateTimeFormat: "yyyy-MM-dd HH:mm:ss",
		DisconnectAfterAck:    false,
		IsServer:              true,
		Mode:                  ModeServer,
		ProxyDirection:        DirListenerToClient,
		MaxQueueDepth:         0,
	}
}

// Validate rejects settings that cannot start the requested mode.
func (s Settings) Validate() error {
	switch s.Mode {
	case ModeServer, ModeClient, ModeProxy:
	default:
		return fmt.Errorf("config: unknown Mode %q", s.Mode)
	}

	if s.Mode == ModeClient && strings.TrimSpace(s.ClientHost) == "" {
		return fmt.Errorf("config: ClientHost is required in Client mode")
	}

	if s.Mode == ModeProxy {
		switch s.ProxyDirection {
		case DirListenerToClient, DirClientToListener:
		default:
			return fmt.Errorf("config: unknown ProxyDirection %q", s.ProxyDirection)
		}
		if strings.TrimSpace(s.ClientHost) == "" {
			return fmt.Errorf("config: ClientHost is required in Proxy mode")
		}
	}

	if (s.Mode == ModeServer || s.Mode == ModeProxy) && s.Port <= 0 {
		return fmt.Errorf("config: Port must be positive in %s mode", s.Mode)
	}

	if s.MaxQueueDepth < 0 {
		return fmt.Errorf("config: MaxQueueDepth must be >= 0")
	}

	return nil
}

// AllowsEvent reports whether msgType (MSH-9) is in the listener's
// AllowedEvents list (spec.md §4.6). Comparison is exact string match
// against the configured values.
func (s Settings) AllowsEvent(msgType string) bool {
	for _, e := range s.AllowedEvents {
		if e == msgType {
			return true
		}
	}
	return false
}
