// Package config loads runtime settings with viper: defaults, an optional
// YAML/TOML/JSON file and MIDISYNTH_* environment overrides.
package config

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/cbegin/midisynth-go/internal/mixer"
)

const (
	EnvPrefix = "MIDISYNTH"
	// MaxVolume is the top step of the per-track volume table.
	MaxVolume = 13
)

type Audio struct {
	Backend     string `mapstructure:"backend"`
	BufferSize  int    `mapstructure:"buffer_size"`
	Descriptors int    `mapstructure:"descriptors"`
	SerialPort  string `mapstructure:"serial_port"`
	BaudRate    int    `mapstructure:"baud_rate"`
}

type Volume struct {
	Effects int `mapstructure:"effects"`
	Music   int `mapstructure:"music"`
}

type MIDI struct {
	Port         string `mapstructure:"port"`
	QueueSize    int    `mapstructure:"queue_size"`
	TextEncoding string `mapstructure:"text_encoding"`
}

// Sample maps a WAV recording onto a melodic program.
type Sample struct {
	Name    string `mapstructure:"name"`
	Path    string `mapstructure:"path"`
	Bank    int    `mapstructure:"bank"`
	Program int    `mapstructure:"program"`
	// BaseNote is the recorded pitch as a MIDI note number.
	BaseNote int `mapstructure:"base_note"`
	// Loop is the number of passes; 0 loops forever.
	Loop int `mapstructure:"loop"`
}

type Config struct {
	SampleRate int    `mapstructure:"sample_rate"`
	Headroom   uint16 `mapstructure:"headroom"`
	Loop       bool   `mapstructure:"loop"`
	Watch      bool   `mapstructure:"watch"`
	LogLevel   string `mapstructure:"log_level"`
	Audio      Audio  `mapstructure:"audio"`
	Volume     Volume `mapstructure:"volume"`
	MIDI       MIDI   `mapstructure:"midi"`
	// Wavetables holds hex-encoded tables keyed by slot ("WAVB4" or "4").
	Wavetables map[string]string `mapstructure:"wavetables"`
	Samples    []Sample          `mapstructure:"samples"`
	// KitScript is a Lua percussion kit layered over the built-in drums.
	KitScript string `mapstructure:"kit_script"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sample_rate", 32768)
	v.SetDefault("headroom", mixer.DefaultHeadroom)
	v.SetDefault("loop", false)
	v.SetDefault("watch", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("audio.backend", "ebiten")
	v.SetDefault("audio.buffer_size", 2048)
	v.SetDefault("audio.descriptors", 4)
	v.SetDefault("audio.serial_port", "")
	v.SetDefault("audio.baud_rate", 921600)
	v.SetDefault("volume.effects", MaxVolume)
	v.SetDefault("volume.music", MaxVolume)
	v.SetDefault("midi.port", "")
	v.SetDefault("midi.queue_size", 256)
	v.SetDefault("midi.text_encoding", "auto")
	v.SetDefault("kit_script", "")
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return errors.Errorf("sample_rate %d must be positive", c.SampleRate)
	case c.Audio.BufferSize <= 0:
		return errors.Errorf("audio.buffer_size %d must be positive", c.Audio.BufferSize)
	case c.Audio.Descriptors < 2:
		return errors.Errorf("audio.descriptors %d must be at least 2", c.Audio.Descriptors)
	case c.Headroom > mixer.MaxHeadroom:
		return errors.Errorf("headroom %#x exceeds %#x", c.Headroom, mixer.MaxHeadroom)
	case c.Volume.Effects < 0 || c.Volume.Effects > MaxVolume:
		return errors.Errorf("volume.effects %d out of range 0..%d", c.Volume.Effects, MaxVolume)
	case c.Volume.Music < 0 || c.Volume.Music > MaxVolume:
		return errors.Errorf("volume.music %d out of range 0..%d", c.Volume.Music, MaxVolume)
	}
	for _, s := range c.Samples {
		if s.Path == "" {
			return errors.Errorf("sample %q has no path", s.Name)
		}
		if s.Program < 0 || s.Program > 127 || s.BaseNote < 0 || s.BaseNote > 127 {
			return errors.Errorf("sample %q: program and base_note must be 0..127", s.Name)
		}
	}
	return nil
}

// Level parses the configured log level, defaulting to info.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Loader owns the viper instance so the file can be re-read on change.
type Loader struct {
	v      *viper.Viper
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewLoader reads defaults and environment overrides, plus path when it is
// not empty.
func NewLoader(path string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return &Loader{v: v, path: path, logger: logger}
}

// Load reads and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.path != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", l.path)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var c Config
	if err := l.v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Watch re-reads the file whenever it is written and hands every valid
// result to onChange. Invalid edits are logged and skipped.
func (l *Loader) Watch(onChange func(*Config)) error {
	if l.path == "" {
		return errors.New("no config file to watch")
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		// editors often replace the file instead of writing it
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) && !e.Has(fsnotify.Rename) {
			return
		}
		l.mu.Lock()
		c, err := l.decode()
		l.mu.Unlock()
		if err != nil {
			l.logger.Warn("config reload rejected", "file", e.Name, "err", err)
			return
		}
		l.logger.Info("config reloaded", "file", e.Name)
		onChange(c)
	})
	l.v.WatchConfig()
	return nil
}
