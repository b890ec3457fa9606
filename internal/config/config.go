package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"gopkg.in/yaml.v3"

	"github.com/mt4110/rec-split/internal/media"
	"github.com/mt4110/rec-split/internal/split"
)

// Profile is a named set of encode settings selected with --profile.
type Profile struct {
	CRF        int    `yaml:"crf"`
	Preset     string `yaml:"preset"`
	VideoCodec string `yaml:"videoCodec"`
	AudioCodec string `yaml:"audioCodec"`
}

// StrategyConfig is the loosely shaped strategy read from YAML or flags.
// Mode is one of "time", "count", "scene" or "manual".
type StrategyConfig struct {
	Mode      string    `yaml:"mode"`
	Interval  float64   `yaml:"interval"`
	Count     int       `yaml:"count"`
	Threshold float64   `yaml:"threshold"`
	MinGap    float64   `yaml:"minGap"`
	Points    []float64 `yaml:"points"`
}

type Config struct {
	WatchDirs []string `yaml:"watchDirs"`

	DestDir         string             `yaml:"destDir"`
	Format          string             `yaml:"format"`
	CRF             int                `yaml:"crf"`
	Preset          string             `yaml:"preset"`
	VideoCodec      string             `yaml:"videoCodec"`
	AudioCodec      string             `yaml:"audioCodec"`
	Split           StrategyConfig     `yaml:"split"`
	Copy            bool               `yaml:"copy"`
	Keywords        []string           `yaml:"keywords"`
	IgnoreKeywords  []string           `yaml:"ignoreKeywords"`
	BatchStamp      bool               `yaml:"batchStamp"`
	FFmpegBin       string             `yaml:"ffmpegBin"`
	FFprobeBin      string             `yaml:"ffprobeBin"`
	Workers         int                `yaml:"workers"`
	ContinueOnError bool               `yaml:"continueOnError"`
	Notify          bool               `yaml:"notify"`
	LogFile         string             `yaml:"logFile"`
	DryRun          bool               `yaml:"dryRun"`
	Verbose         bool               `yaml:"verbose"`
	Profiles        map[string]Profile `yaml:"profiles"`
}

func NewDefault() *Config {
	cwd, _ := os.Getwd()
	defaultDest := filepath.Join(cwd, "out")

	return &Config{
		DestDir:    defaultDest,
		Format:     "mp4",
		CRF:        23,
		Preset:     "fast",
		VideoCodec: "libx264",
		AudioCodec: "aac",
		Split: StrategyConfig{
			Mode:      "time",
			Interval:  300,
			Threshold: 0.3,
		},
		BatchStamp: true,
		Workers:    1,
		Notify:     true,
	}
}

// AutoWorkers is the physical core count minus one, at least 1.
func AutoWorkers() int {
	n, err := cpu.Counts(false)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	if n-1 < 1 {
		return 1
	}
	return n - 1
}

// EffectiveWorkers is Workers, or AutoWorkers when Workers <= 0.
func (c *Config) EffectiveWorkers() int {
	if c.Workers <= 0 {
		return AutoWorkers()
	}
	return c.Workers
}

// Path returns the location of the config file.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rec-split", "config.yaml"), nil
}

func Load() (*Config, error) {
	cfg := NewDefault()

	configPath, err := Path()
	if err != nil {
		return cfg, nil // ホームディレクトリが取れなくてもデフォルトで進む
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	f, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return cfg, nil
}

// ApplyProfile copies the non-zero settings of the named profile.
func (c *Config) ApplyProfile(name string) error {
	p, ok := c.Profiles[name]
	if !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	if p.CRF > 0 {
		c.CRF = p.CRF
	}
	if p.Preset != "" {
		c.Preset = p.Preset
	}
	if p.VideoCodec != "" {
		c.VideoCodec = p.VideoCodec
	}
	if p.AudioCodec != "" {
		c.AudioCodec = p.AudioCodec
	}
	return nil
}

// Encode returns the re-encode settings for the executor.
func (c *Config) Encode() split.EncodeOptions {
	return split.EncodeOptions{
		VideoCodec: c.VideoCodec,
		AudioCodec: c.AudioCodec,
		Preset:     c.Preset,
		CRF:        c.CRF,
	}
}

// Strategy converts the configured mode into a validated split.Strategy.
func (s StrategyConfig) Strategy() (split.Strategy, error) {
	var st split.Strategy
	switch strings.ToLower(strings.TrimSpace(s.Mode)) {
	case "time", "interval":
		st = split.TimeInterval{Duration: s.Interval}
	case "count":
		if s.Count <= 0 {
			return nil, fmt.Errorf("%w: count must be > 0, got %d", media.ErrInvalidStrategy, s.Count)
		}
		st = split.TimeInterval{Count: s.Count}
	case "scene":
		st = split.Scene{Threshold: s.Threshold, MinGap: s.MinGap}
	case "manual":
		st = split.Manual{Points: s.Points}
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", media.ErrInvalidStrategy, s.Mode)
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}
	return st, nil
}
