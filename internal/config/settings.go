package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Settings holds everything a user may tune in config.toml.
type Settings struct {
	Frame    FrameSettings    `toml:"frame"`
	Radio    RadioSettings    `toml:"radio"`
	Registry RegistrySettings `toml:"registry"`
	Logging  LoggingSettings  `toml:"logging"`
	API      APISettings      `toml:"api"`
}

// FrameSettings bounds the advertisement frame.
type FrameSettings struct {
	Budget         int     `toml:"budget"`
	NicknameBudget int     `toml:"nickname_budget"`
	IDBudget       int     `toml:"id_budget"`
	CompanyID      uint16  `toml:"company_id"`
	ReferencePower float64 `toml:"reference_power"`
}

// RadioSettings controls the advertise/scan handoff.
type RadioSettings struct {
	Backend              string   `toml:"backend"` // tinygo or hci
	MaxBroadcastAttempts int      `toml:"max_broadcast_attempts"`
	RetryDelay           Duration `toml:"retry_delay"`
	HeadingPollAttempts  int      `toml:"heading_poll_attempts"`
	HeadingPollInterval  Duration `toml:"heading_poll_interval"`
	AdvertiseDuration    Duration `toml:"advertise_duration"`
	AdvertiseInterval    Duration `toml:"advertise_interval"`
	StepDelay            Duration `toml:"step_delay"`
}

// RegistrySettings controls peer expiry. A zero ttl keeps peers forever.
type RegistrySettings struct {
	PeerTTL Duration `toml:"peer_ttl"`
}

// LoggingSettings controls logging behavior.
type LoggingSettings struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// APISettings controls the optional HTTP API.
type APISettings struct {
	Listen string `toml:"listen"` // empty disables the server
}

// Duration is a time.Duration written as "500ms" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return errors.Wrapf(err, "duration %q", string(b))
	}
	d.Duration = v
	return nil
}

// MarshalText writes the duration in Go notation.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultSettings returns the built-in configuration.
func DefaultSettings() Settings {
	return Settings{
		Frame: FrameSettings{
			Budget:         FrameBudget,
			NicknameBudget: 10,
			IDBudget:       8,
			CompanyID:      CompanyID,
			ReferencePower: MeasuredPower,
		},
		Radio: RadioSettings{
			Backend:              "tinygo",
			MaxBroadcastAttempts: 5,
			RetryDelay:           Duration{500 * time.Millisecond},
			HeadingPollAttempts:  10,
			HeadingPollInterval:  Duration{100 * time.Millisecond},
			AdvertiseDuration:    Duration{2 * time.Second},
			AdvertiseInterval:    Duration{10 * time.Second},
			StepDelay:            Duration{200 * time.Millisecond},
		},
		Logging: LoggingSettings{
			Level: "info",
			File:  filepath.Join(Home(), "radar.log"),
		},
	}
}

// Validate rejects settings the engine cannot run with.
func (s Settings) Validate() error {
	switch {
	case s.Frame.Budget <= 0:
		return errors.New("frame.budget must be positive")
	case s.Frame.NicknameBudget <= 0:
		return errors.New("frame.nickname_budget must be positive")
	case s.Frame.IDBudget <= 0:
		return errors.New("frame.id_budget must be positive")
	case s.Radio.MaxBroadcastAttempts <= 0:
		return errors.New("radio.max_broadcast_attempts must be positive")
	case s.Radio.HeadingPollAttempts <= 0:
		return errors.New("radio.heading_poll_attempts must be positive")
	case s.Radio.AdvertiseInterval.Duration < 0, s.Registry.PeerTTL.Duration < 0:
		return errors.New("durations must not be negative")
	case s.Radio.Backend != "tinygo" && s.Radio.Backend != "hci":
		return errors.Errorf("radio.backend %q: want tinygo or hci", s.Radio.Backend)
	}
	return nil
}

// SettingsPath returns the default config file location.
func SettingsPath() string {
	return filepath.Join(Home(), "config.toml")
}

// LoadSettings reads path, falling back to defaults for a missing file or
// missing keys.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return s, errors.Wrap(err, "parse config")
	}
	return s, s.Validate()
}

// SaveSettings writes s to path, creating the directory.
func SaveSettings(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, "create config dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create config")
	}
	defer f.Close()
	return errors.Wrap(toml.NewEncoder(f).Encode(s), "encode config")
}

// Home returns the data directory, ~/.proximity-radar unless
// PROXIMITY_RADAR_HOME is set.
func Home() string {
	if env := os.Getenv("PROXIMITY_RADAR_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".proximity-radar")
}
