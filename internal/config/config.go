// Package config loads the bridge configuration from defaults, a YAML file
// and PTZ_ environment variables.
package config

import (
	"io/fs"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/pkg/errors"
	yml "gopkg.in/yaml.v2"

	"ptz-bridge/internal/ptz"
)

// FileName is the configuration file read when none is given
const FileName = "ptz-bridge.yml"

// EnvPrefix selects the environment variables that override file values.
// Nested keys are separated by a double underscore, e.g. PTZ_LOG__LEVEL.
const EnvPrefix = "PTZ_"

// Log configures the process logger
type Log struct {
	Level       string `koanf:"level" yaml:"level"`
	File        string `koanf:"file" yaml:"file"` // empty logs to stderr
	MaxSizeMB   int    `koanf:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups  int    `koanf:"max_backups" yaml:"max_backups"`
	Development bool   `koanf:"development" yaml:"development"`
}

// Camera is one controlled device
type Camera struct {
	Name     string `koanf:"name" yaml:"name"`
	Protocol string `koanf:"protocol" yaml:"protocol"` // onvif, sunapi or vapix
	Address  string `koanf:"address" yaml:"address"`
	Port     int    `koanf:"port" yaml:"port,omitempty"` // onvif only
	Username string `koanf:"username" yaml:"username"`
	Password string `koanf:"password" yaml:"password"`

	// SUNAPI
	Channel         *int `koanf:"channel" yaml:"channel,omitempty"`
	NormalizedSpeed bool `koanf:"normalized_speed" yaml:"normalized_speed,omitempty"`

	// VAPIX
	Camera int `koanf:"camera" yaml:"camera,omitempty"`
	Speed  int `koanf:"speed" yaml:"speed,omitempty"`

	TimeoutSeconds float64 `koanf:"timeout_seconds" yaml:"timeout_seconds,omitempty"`

	// StreamURL is an optional RTSP source relayed to browsers
	StreamURL string `koanf:"stream_url" yaml:"stream_url,omitempty"`
}

// Timeout returns the per-request timeout
func (c Camera) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}

// Config is the full bridge configuration
type Config struct {
	Listen     string   `koanf:"listen" yaml:"listen"`
	ICEServers []string `koanf:"ice_servers" yaml:"ice_servers"`

	// ICEIPs enables ICE-lite with these public host addresses
	ICEIPs []string `koanf:"ice_ips" yaml:"ice_ips"`

	// CommandRate bounds continuous-move commands per second per client
	CommandRate float64 `koanf:"command_rate" yaml:"command_rate"`

	Log     Log      `koanf:"log" yaml:"log"`
	Cameras []Camera `koanf:"cameras" yaml:"cameras"`
}

// Default returns the built-in configuration. It has no cameras.
func Default() Config {
	return Config{
		Listen:      ":8080",
		ICEServers:  []string{"stun:stun.l.google.com:19302"},
		ICEIPs:      []string{},
		CommandRate: 20,
		Log: Log{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		Cameras: []Camera{},
	}
}

// Load layers defaults, the YAML file at path and the environment. A missing
// file is not an error; the result is validated either way.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, errors.Wrap(err, "failed to load defaults")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, errors.Wrapf(err, "failed to load %s", path)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, errors.Wrap(err, "failed to load environment")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode configuration")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps PTZ_LOG__MAX_SIZE_MB to log.max_size_mb
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// applyDefaults fills per-camera values left out of the file
func (c *Config) applyDefaults() {
	for i := range c.Cameras {
		cam := &c.Cameras[i]
		cam.Protocol = strings.ToLower(cam.Protocol)
		if cam.Port == 0 && cam.Protocol == ptz.ProtocolONVIF {
			cam.Port = 80
		}
		if cam.Camera == 0 && cam.Protocol == ptz.ProtocolVAPIX {
			cam.Camera = 1
		}
		if cam.TimeoutSeconds == 0 {
			cam.TimeoutSeconds = 5
		}
	}
}

// Validate checks for at least one camera, unique non-empty names, known
// protocols and addresses
func (c Config) Validate() error {
	if len(c.Cameras) == 0 {
		return errors.New("config: no cameras configured")
	}
	if c.CommandRate <= 0 {
		return errors.Errorf("config: command_rate must be positive, got %v", c.CommandRate)
	}

	seen := make(map[string]bool, len(c.Cameras))
	for i, cam := range c.Cameras {
		if cam.Name == "" {
			return errors.Errorf("config: camera %d has no name", i)
		}
		if seen[cam.Name] {
			return errors.Errorf("config: duplicate camera name %q", cam.Name)
		}
		seen[cam.Name] = true

		if cam.Protocol == "" {
			return errors.Errorf("config: camera %q has no protocol", cam.Name)
		}
		if err := ptz.OneOf("protocol", cam.Protocol, ptz.ProtocolONVIF, ptz.ProtocolSUNAPI, ptz.ProtocolVAPIX); err != nil {
			return errors.Wrapf(err, "config: camera %q", cam.Name)
		}
		if cam.Address == "" {
			return errors.Errorf("config: camera %q has no address", cam.Name)
		}
		if cam.TimeoutSeconds < 0 {
			return errors.Errorf("config: camera %q has a negative timeout", cam.Name)
		}
	}
	return nil
}

// Example returns Default with one sample camera per protocol, for -mkconf
func Example() Config {
	cfg := Default()
	channel := 0
	cfg.Cameras = []Camera{
		{
			Name: "gate", Protocol: ptz.ProtocolSUNAPI, Address: "192.168.1.20",
			Username: "admin", Password: "admin", Channel: &channel, NormalizedSpeed: true,
			TimeoutSeconds: 5, StreamURL: "rtsp://192.168.1.20/profile1/media.smp",
		},
		{
			Name: "yard", Protocol: ptz.ProtocolVAPIX, Address: "192.168.1.21",
			Username: "root", Password: "pass", Camera: 1, TimeoutSeconds: 5,
		},
		{
			Name: "dock", Protocol: ptz.ProtocolONVIF, Address: "192.168.1.22", Port: 80,
			Username: "admin", Password: "admin", TimeoutSeconds: 5,
		},
	}
	return cfg
}

// YAML encodes c as a configuration file
func (c Config) YAML() ([]byte, error) {
	b, err := yml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode configuration")
	}
	return b, nil
}
