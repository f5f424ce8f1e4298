// Package config loads the hub's startup configuration: the OSC listen
// endpoint, optional reply port, and the list of device bindings (spec.md
// §6 "Config ingest"). YAML is the on-disk format; a handful of top-level
// fields fall back to environment variables when the file omits them,
// following the teacher's cmd/server/main.go os.Getenv-with-fallback style.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mousetraptech/productionhub/internal/logging"
)

// REVISION: config-v1-yaml-plus-env
const revision = "config-v1-yaml-plus-env"

var log = logging.New("config")

func init() {
	log.Debugf("REVISION: %s loaded", revision)
}

const (
	DefaultListenPort = 9000
	DefaultListenAddr = "0.0.0.0"
)

// Config is the fully validated, ready-to-wire startup configuration.
type Config struct {
	ListenAddr string
	ListenPort int
	ReplyPort  int // 0 means "use the sender's source port"
	CueListPath string
	Devices    []Device
}

// Device describes one device binding (spec.md §3 "Driver").
type Device struct {
	Type   string // avantis | chamsys | obs | visca | touchdesigner | qlab
	Name   string
	Prefix string
	Host   string
	Port   int

	MIDIBaseChannel int // avantis only, 0-indexed

	EchoSuppressionMs int // avantis only, feedback suppression window

	CameraAddress int // visca only, default 1

	// Transport selects "tcp" (default) or "udp" (VISCA-over-IP) for the
	// visca device type; ignored by every other type.
	Transport string

	ReplyPasscode string // qlab connect passcode
	AuthPassword  string // obs-websocket server password, empty if auth disabled

	Reconnect ReconnectConfig
	Heartbeat HeartbeatConfig
}

type ReconnectConfig struct {
	InitialMs int
	MaxMs     int
}

type HeartbeatConfig struct {
	Enabled    bool
	IntervalMs int
}

type yamlRoot struct {
	Listen struct {
		Addr      string `yaml:"addr"`
		Port      int    `yaml:"port"`
		ReplyPort int    `yaml:"replyPort"`
	} `yaml:"listen"`
	CueListPath string       `yaml:"cueListPath"`
	Devices     []yamlDevice `yaml:"devices"`
}

type yamlDevice struct {
	Type            string `yaml:"type"`
	Name            string `yaml:"name"`
	Prefix          string `yaml:"prefix"`
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	MIDIBaseChannel int    `yaml:"midiBaseChannel"`
	CameraAddress   int    `yaml:"cameraAddress"`
	Transport       string `yaml:"transport"`
	ReplyPasscode   string `yaml:"passcode"`
	AuthPassword    string `yaml:"authPassword"`
	Feedback        struct {
		EchoSuppressionMs int `yaml:"echoSuppressionMs"`
	} `yaml:"feedback"`
	Reconnect struct {
		InitialMs int `yaml:"initialMs"`
		MaxMs     int `yaml:"maxMs"`
	} `yaml:"reconnect"`
	Heartbeat struct {
		Enabled    bool `yaml:"enabled"`
		IntervalMs int  `yaml:"intervalMs"`
	} `yaml:"heartbeat"`
}

// LoadFile reads, parses, and validates the YAML configuration at path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML configuration document. Top-level
// listen fields fall back to PRODHUB_OSC_ADDR / PRODHUB_OSC_PORT /
// PRODHUB_REPLY_PORT when the document omits them.
func Parse(data []byte) (*Config, error) {
	var root yamlRoot
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("config: invalid YAML: %w", err)
	}

	cfg := &Config{
		ListenAddr:  root.Listen.Addr,
		ListenPort:  root.Listen.Port,
		ReplyPort:   root.Listen.ReplyPort,
		CueListPath: root.CueListPath,
	}
	applyEnvFallback(cfg)

	for _, yd := range root.Devices {
		d, err := convertDevice(yd)
		if err != nil {
			return nil, err
		}
		cfg.Devices = append(cfg.Devices, d)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvFallback(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = envOr("PRODHUB_OSC_ADDR", DefaultListenAddr)
	}
	if cfg.ListenPort == 0 {
		cfg.ListenPort = envIntOr("PRODHUB_OSC_PORT", DefaultListenPort)
	}
	if cfg.ReplyPort == 0 {
		cfg.ReplyPort = envIntOr("PRODHUB_REPLY_PORT", 0)
	}
	if cfg.CueListPath == "" {
		cfg.CueListPath = os.Getenv("PRODHUB_CUELIST_PATH")
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("ignoring non-numeric %s=%q", key, v)
		return fallback
	}
	return n
}

func convertDevice(yd yamlDevice) (Device, error) {
	if yd.Type == "" {
		return Device{}, fmt.Errorf("config: device %q missing type", yd.Name)
	}
	if yd.Prefix == "" {
		return Device{}, fmt.Errorf("config: device %q missing prefix", yd.Name)
	}
	name := yd.Name
	if name == "" {
		name = yd.Type
	}
	cameraAddress := yd.CameraAddress
	if cameraAddress == 0 {
		cameraAddress = 1
	}
	transport := strings.ToLower(yd.Transport)
	if transport == "" {
		transport = "tcp"
	}
	return Device{
		Type:              strings.ToLower(yd.Type),
		Name:              name,
		Prefix:            yd.Prefix,
		Host:              yd.Host,
		Port:              yd.Port,
		MIDIBaseChannel:   yd.MIDIBaseChannel,
		EchoSuppressionMs: yd.Feedback.EchoSuppressionMs,
		CameraAddress:     cameraAddress,
		Transport:         transport,
		ReplyPasscode:     yd.ReplyPasscode,
		AuthPassword:      yd.AuthPassword,
		Reconnect: ReconnectConfig{
			InitialMs: yd.Reconnect.InitialMs,
			MaxMs:     yd.Reconnect.MaxMs,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:    yd.Heartbeat.Enabled,
			IntervalMs: yd.Heartbeat.IntervalMs,
		},
	}, nil
}

func validate(cfg *Config) error {
	if cfg.ListenPort <= 0 || cfg.ListenPort > 65535 {
		return fmt.Errorf("config: invalid listen port %d", cfg.ListenPort)
	}
	seen := make(map[string]string)
	for _, d := range cfg.Devices {
		lower := strings.ToLower(d.Prefix)
		if other, dup := seen[lower]; dup {
			return fmt.Errorf("config: duplicate device prefix %q (devices %q and %q)", d.Prefix, other, d.Name)
		}
		seen[lower] = d.Name
		if d.Host == "" {
			return fmt.Errorf("config: device %q missing host", d.Name)
		}
		switch d.Type {
		case "avantis", "chamsys", "obs", "visca", "touchdesigner", "qlab":
		default:
			return fmt.Errorf("config: device %q has unknown type %q", d.Name, d.Type)
		}
		if d.Type == "visca" {
			switch d.Transport {
			case "tcp", "udp":
			default:
				return fmt.Errorf("config: visca device %q has unknown transport %q", d.Name, d.Transport)
			}
		}
	}
	return nil
}
