// Package config loads mudra settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/lgr"
	"github.com/ayusman/mudra/internal/tracking"
)

// Prefix is prepended to every environment key.
const Prefix = "MUDRA_"

// Tracking source kinds.
const (
	SourceMock    = "mock"
	SourceReplay  = "replay"
	SourceProcess = "process"
)

// Config holds every runtime setting.
type Config struct {
	Hand         tracking.Handedness
	TickFPS      int
	RenderJoints bool

	Source     string
	ReplayPath string
	ReplayLoop bool
	TrackerCmd []string

	MotionModel     string
	MotionFPS       int
	MotionWindow    int
	MotionThreshold float64
	MotionCooldown  time.Duration
	MotionDisplay   time.Duration

	StaticModel     string
	StaticFPS       int
	StaticThreshold float64

	DataDir       string
	DB            string
	Addr          string
	PluginDir     string
	PluginTimeout time.Duration

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string

	Log lgr.Config

	RecordDir     string
	RecordGesture string
	RecordFPS     int
}

// Default returns the built-in settings.
func Default() *Config {
	motion := gesture.MotionProfile()
	static := gesture.StaticProfile()

	dataDir := ".mudra"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".mudra")
	}

	return &Config{
		Hand:    tracking.Right,
		TickFPS: 60,

		Source: SourceMock,

		MotionModel:     filepath.Join("models", "motion.json"),
		MotionFPS:       motion.FPS,
		MotionWindow:    motion.Window,
		MotionThreshold: float64(motion.Threshold),
		MotionCooldown:  motion.Cooldown,
		MotionDisplay:   motion.DisplayFor,

		StaticModel:     filepath.Join("models", "static.json"),
		StaticFPS:       static.FPS,
		StaticThreshold: float64(static.Threshold),

		DataDir:       dataDir,
		Addr:          ":8080",
		PluginDir:     "plugins",
		PluginTimeout: 5 * time.Second,

		MQTTTopic:    "mudra/gestures",
		MQTTClientID: "mudra",

		Log: lgr.Config{Level: "info", MaxSizeMB: 10, MaxBackups: 5, MaxAgeDays: 7},

		RecordDir:     "recordings",
		RecordGesture: "unlabeled",
	}
}

// Load reads .env when present, then the MUDRA_* environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c := Default()
	for _, key := range Keys() {
		if v, ok := os.LookupEnv(Prefix + key); ok {
			if err := c.Set(key, v); err != nil {
				return nil, err
			}
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyOverrides sets persisted key/value overrides on top of c and
// validates the result. Keys may carry the MUDRA_ prefix.
func (c *Config) ApplyOverrides(overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := c.Set(k, overrides[k]); err != nil {
			return err
		}
	}
	return c.Validate()
}

// NormalizeKey upper-cases key and strips the MUDRA_ prefix.
func NormalizeKey(key string) string {
	return strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(key)), Prefix)
}

// Set parses value into the setting named key.
func (c *Config) Set(key, value string) error {
	key = NormalizeKey(key)
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown setting %q", key)
	}
	if err := set(c, strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("%s%s: %w", Prefix, key, err)
	}
	return nil
}

// Keys returns the recognized setting names without the prefix.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var setters = map[string]func(c *Config, v string) error{
	"HAND": func(c *Config, v string) (err error) {
		c.Hand, err = tracking.ParseHandedness(v)
		return err
	},
	"TICK_FPS":      intSetter(func(c *Config) *int { return &c.TickFPS }),
	"RENDER_JOINTS": boolSetter(func(c *Config) *bool { return &c.RenderJoints }),

	"SOURCE":      stringSetter(func(c *Config) *string { return &c.Source }),
	"REPLAY_PATH": stringSetter(func(c *Config) *string { return &c.ReplayPath }),
	"REPLAY_LOOP": boolSetter(func(c *Config) *bool { return &c.ReplayLoop }),
	"TRACKER_CMD": func(c *Config, v string) error {
		c.TrackerCmd = strings.Fields(v)
		return nil
	},

	"MOTION_MODEL":     stringSetter(func(c *Config) *string { return &c.MotionModel }),
	"MOTION_FPS":       intSetter(func(c *Config) *int { return &c.MotionFPS }),
	"MOTION_WINDOW":    intSetter(func(c *Config) *int { return &c.MotionWindow }),
	"MOTION_THRESHOLD": floatSetter(func(c *Config) *float64 { return &c.MotionThreshold }),
	"MOTION_COOLDOWN":  durationSetter(func(c *Config) *time.Duration { return &c.MotionCooldown }),
	"MOTION_DISPLAY":   durationSetter(func(c *Config) *time.Duration { return &c.MotionDisplay }),

	"STATIC_MODEL":     stringSetter(func(c *Config) *string { return &c.StaticModel }),
	"STATIC_FPS":       intSetter(func(c *Config) *int { return &c.StaticFPS }),
	"STATIC_THRESHOLD": floatSetter(func(c *Config) *float64 { return &c.StaticThreshold }),

	"DATA_DIR":       stringSetter(func(c *Config) *string { return &c.DataDir }),
	"DB":             stringSetter(func(c *Config) *string { return &c.DB }),
	"ADDR":           stringSetter(func(c *Config) *string { return &c.Addr }),
	"PLUGIN_DIR":     stringSetter(func(c *Config) *string { return &c.PluginDir }),
	"PLUGIN_TIMEOUT": durationSetter(func(c *Config) *time.Duration { return &c.PluginTimeout }),

	"MQTT_BROKER":    stringSetter(func(c *Config) *string { return &c.MQTTBroker }),
	"MQTT_TOPIC":     stringSetter(func(c *Config) *string { return &c.MQTTTopic }),
	"MQTT_CLIENT_ID": stringSetter(func(c *Config) *string { return &c.MQTTClientID }),

	"LOG_LEVEL": func(c *Config, v string) error {
		switch strings.ToLower(v) {
		case "debug", "info", "warn", "warning", "error":
			c.Log.Level = strings.ToLower(v)
			return nil
		}
		return fmt.Errorf("invalid log level %q", v)
	},
	"LOG_FILE":         stringSetter(func(c *Config) *string { return &c.Log.File }),
	"LOG_MAX_SIZE_MB":  intSetter(func(c *Config) *int { return &c.Log.MaxSizeMB }),
	"LOG_MAX_BACKUPS":  intSetter(func(c *Config) *int { return &c.Log.MaxBackups }),
	"LOG_MAX_AGE_DAYS": intSetter(func(c *Config) *int { return &c.Log.MaxAgeDays }),

	"RECORD_DIR":     stringSetter(func(c *Config) *string { return &c.RecordDir }),
	"RECORD_GESTURE": stringSetter(func(c *Config) *string { return &c.RecordGesture }),
	"RECORD_FPS":     intSetter(func(c *Config) *int { return &c.RecordFPS }),
}

func stringSetter(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func intSetter(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer %q", v)
		}
		*field(c) = n
		return nil
	}
}

func floatSetter(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", v)
		}
		*field(c) = f
		return nil
	}
}

func boolSetter(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", v)
		}
		*field(c) = b
		return nil
	}
}

func durationSetter(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q", v)
		}
		*field(c) = d
		return nil
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if _, err := tracking.ParseHandedness(string(c.Hand)); err != nil {
		errs = append(errs, err)
	}
	if c.TickFPS <= 0 {
		errs = append(errs, fmt.Errorf("tick fps %d must be positive", c.TickFPS))
	}

	switch c.Source {
	case SourceMock:
	case SourceReplay:
		if c.ReplayPath == "" {
			errs = append(errs, errors.New("replay source needs MUDRA_REPLAY_PATH"))
		}
	case SourceProcess:
		if len(c.TrackerCmd) == 0 {
			errs = append(errs, errors.New("process source needs MUDRA_TRACKER_CMD"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source))
	}

	if c.MotionModel == "" && c.StaticModel == "" {
		errs = append(errs, errors.New("at least one of the motion and static models is required"))
	}
	for name, fps := range map[string]int{"motion fps": c.MotionFPS, "static fps": c.StaticFPS, "record fps": c.RecordFPS} {
		if fps < 0 {
			errs = append(errs, fmt.Errorf("%s %d must not be negative", name, fps))
		}
	}
	if c.MotionWindow < 1 {
		errs = append(errs, fmt.Errorf("motion window %d must be at least 1", c.MotionWindow))
	}
	for name, th := range map[string]float64{"motion threshold": c.MotionThreshold, "static threshold": c.StaticThreshold} {
		if th < 0 || th > 1 {
			errs = append(errs, fmt.Errorf("%s %g outside [0, 1]", name, th))
		}
	}
	if c.MotionCooldown < 0 || c.MotionDisplay < 0 || c.PluginTimeout < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.RecordGesture == "" || strings.ContainsAny(c.RecordGesture, `/\`) {
		errs = append(errs, fmt.Errorf("invalid record gesture label %q", c.RecordGesture))
	}

	return errors.Join(errs...)
}

// DBPath returns the database file, defaulting to mudra.db in DataDir.
func (c *Config) DBPath() string {
	if c.DB != "" {
		return c.DB
	}
	return filepath.Join(c.DataDir, "mudra.db")
}

// MotionProfile returns the motion detector profile for these settings.
func (c *Config) MotionProfile() gesture.Profile {
	p := gesture.MotionProfile()
	p.Hand = c.Hand
	p.FPS = c.MotionFPS
	p.Window = c.MotionWindow
	p.Threshold = float32(c.MotionThreshold)
	p.Cooldown = c.MotionCooldown
	p.DisplayFor = c.MotionDisplay
	return p
}

// StaticProfile returns the static detector profile for these settings.
func (c *Config) StaticProfile() gesture.Profile {
	p := gesture.StaticProfile()
	p.Hand = c.Hand
	p.FPS = c.StaticFPS
	p.Threshold = float32(c.StaticThreshold)
	return p
}

// TrackingConfig returns the options for the configured tracking source.
func (c *Config) TrackingConfig() tracking.Config {
	return tracking.Config{
		Hand:       c.Hand,
		Command:    c.TrackerCmd,
		ReplayPath: c.ReplayPath,
		Loop:       c.ReplayLoop,
	}
}
