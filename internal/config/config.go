// Package config loads simulation and vehicle-node settings from defaults,
// an optional JSON or YAML file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"multi-uuv-sim/internal/formation"
)

// ErrInvalidConfiguration is returned by Validate.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Config is the full set of settings.
type Config struct {
	Vehicles int     `mapstructure:"vehicles"`
	Omega0   float64 `mapstructure:"omega0"`
	Gain     float64 `mapstructure:"gain"`
	Speed    float64 `mapstructure:"speed"`
	Dt       float64 `mapstructure:"dt"`
	Duration float64 `mapstructure:"duration"`
	Seed     int64   `mapstructure:"seed"`

	Scenario ScenarioConfig `mapstructure:"scenario"`
	Noise    NoiseConfig    `mapstructure:"noise"`
	Output   OutputConfig   `mapstructure:"output"`
	Log      LogConfig      `mapstructure:"log"`
	Node     NodeConfig     `mapstructure:"node"`
}

// ScenarioConfig selects the initial conditions.
type ScenarioConfig struct {
	Kind         string  `mapstructure:"kind"`
	File         string  `mapstructure:"file"`
	Radius       float64 `mapstructure:"radius"` // zero means speed/omega0; half-width for "random"
	Perturbation float64 `mapstructure:"perturbation"`
}

// NoiseConfig sets the Gaussian error added to broadcast poses.
type NoiseConfig struct {
	Position float64 `mapstructure:"position"`
	Yaw      float64 `mapstructure:"yaw"`
}

// OutputConfig selects what a simulation run produces.
type OutputConfig struct {
	Plot     string `mapstructure:"plot"`
	DB       string `mapstructure:"db"`
	GUI      bool   `mapstructure:"gui"`
	Scenario string `mapstructure:"scenario"` // write the initial poses here
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// NodeConfig holds the settings of a networked vehicle node.
type NodeConfig struct {
	ID         int           `mapstructure:"id"` // negative means derive from Namespace
	Namespace  string        `mapstructure:"namespace"`
	Listen     string        `mapstructure:"listen"`
	Peers      []string      `mapstructure:"peers"`
	Rate       time.Duration `mapstructure:"rate"`
	StaleAfter time.Duration `mapstructure:"staleAfter"`
	LeaderID   int           `mapstructure:"leaderId"` // negative disables the attitude relay
	RelayRate  time.Duration `mapstructure:"relayRate"`
	RateLoop   RateLoop      `mapstructure:"rateLoop"`
}

// RateLoop configures the PI loop that makes a node's heading rate track
// the commanded yaw rate.
type RateLoop struct {
	Enabled     bool    `mapstructure:"enabled"`
	PGain       float64 `mapstructure:"pGain"`
	IGain       float64 `mapstructure:"iGain"`
	Limit       float64 `mapstructure:"limit"`
	IntegralMax float64 `mapstructure:"integralMax"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("vehicles", 4)
	v.SetDefault("omega0", 1.0)
	v.SetDefault("gain", 1.0)
	v.SetDefault("speed", 1.0)
	v.SetDefault("dt", 0.02)
	v.SetDefault("duration", 15.0)
	v.SetDefault("seed", 1)

	v.SetDefault("scenario.kind", "line")
	v.SetDefault("scenario.file", "")
	v.SetDefault("scenario.radius", 0.0)
	v.SetDefault("scenario.perturbation", 0.3)

	v.SetDefault("noise.position", 0.0)
	v.SetDefault("noise.yaw", 0.0)

	v.SetDefault("output.plot", "")
	v.SetDefault("output.db", "")
	v.SetDefault("output.gui", false)
	v.SetDefault("output.scenario", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetDefault("node.id", -1)
	v.SetDefault("node.namespace", "")
	v.SetDefault("node.listen", ":14550")
	v.SetDefault("node.peers", []string{})
	v.SetDefault("node.rate", "50ms")
	v.SetDefault("node.staleAfter", "1s")
	v.SetDefault("node.leaderId", -1)
	v.SetDefault("node.relayRate", "33ms")
	v.SetDefault("node.rateLoop.enabled", false)
	v.SetDefault("node.rateLoop.pGain", 10.0)
	v.SetDefault("node.rateLoop.iGain", 0.0)
	v.SetDefault("node.rateLoop.limit", 100.0)
	v.SetDefault("node.rateLoop.integralMax", 100.0)
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"config":        "",
	"vehicles":      "vehicles",
	"omega0":        "omega0",
	"gain":          "gain",
	"speed":         "speed",
	"dt":            "dt",
	"duration":      "duration",
	"seed":          "seed",
	"scenario":      "scenario.kind",
	"scenario-file": "scenario.file",
	"radius":        "scenario.radius",
	"perturbation":  "scenario.perturbation",
	"noise-pos":     "noise.position",
	"noise-yaw":     "noise.yaw",
	"plot":          "output.plot",
	"db":            "output.db",
	"gui":           "output.gui",
	"save-scenario": "output.scenario",
	"log-level":     "log.level",
	"log-json":      "log.json",
	"id":            "node.id",
	"namespace":     "node.namespace",
	"listen":        "node.listen",
	"peers":         "node.peers",
	"rate":          "node.rate",
	"stale-after":   "node.staleAfter",
	"leader-id":     "node.leaderId",
}

// AddFlags registers the command-line flags on fs. Only flags that are set
// on the command line override file values.
func AddFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a JSON or YAML configuration file")
	fs.Int("vehicles", 4, "number of vehicles in the group")
	fs.Float64("omega0", 1.0, "natural angular rate in rad/s")
	fs.Float64("gain", 1.0, "consensus gain K")
	fs.Float64("speed", 1.0, "forward speed")
	fs.Float64("dt", 0.02, "simulation time step in seconds")
	fs.Float64("duration", 15.0, "simulated duration in seconds")
	fs.Int64("seed", 1, "random seed for perturbed scenarios and noise")
	fs.String("scenario", "line", "initial conditions: line, circle, perturbed, random or file")
	fs.String("scenario-file", "", "YAML scenario file used with --scenario=file")
	fs.Float64("radius", 0, "circle radius or random half-width, 0 for speed/omega0")
	fs.Float64("perturbation", 0.3, "maximum perturbation of the perturbed scenario")
	fs.Float64("noise-pos", 0, "standard deviation of broadcast position noise")
	fs.Float64("noise-yaw", 0, "standard deviation of broadcast yaw noise")
	fs.String("plot", "", "write a trajectory PNG to this path")
	fs.String("db", "", "store the run in this SQLite database")
	fs.Bool("gui", false, "show a live window")
	fs.String("save-scenario", "", "write the initial poses to this YAML file")
	fs.String("log-level", "info", "trace, debug, info, warn or error")
	fs.Bool("log-json", false, "log JSON records instead of console lines")
	fs.Int("id", -1, "vehicle id, negative to derive it from --namespace")
	fs.String("namespace", "", "namespace the vehicle id is extracted from, e.g. /uuv02/")
	fs.String("listen", ":14550", "UDP address for pose broadcasts")
	fs.StringSlice("peers", nil, "UDP addresses of the other vehicles")
	fs.Duration("rate", 50*time.Millisecond, "control loop period")
	fs.Duration("stale-after", time.Second, "exclude peers not heard from for this long, 0 keeps them forever")
	fs.Int("leader-id", -1, "relay this vehicle's attitude, negative disables")
}

// Load builds a Config from defaults, the file named by the "config" flag
// (if any) and the flags in fs that were set.
func Load(v *viper.Viper, fs *pflag.FlagSet) (*Config, error) {
	SetDefaults(v)

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil || key == "" {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("error binding flag %q: %w", name, err)
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &cfg, nil
}

// Law returns the formation constants.
func (c *Config) Law() formation.Law {
	return formation.Law{Omega0: c.Omega0, Gain: c.Gain, Speed: c.Speed}
}

// Steps returns the number of ticks covering Duration.
func (c *Config) Steps() int {
	return int(math.Round(c.Duration / c.Dt))
}

// Radius returns the scenario circle radius, defaulting to the natural orbit radius.
func (c *Config) Radius() float64 {
	if c.Scenario.Radius > 0 {
		return c.Scenario.Radius
	}
	return c.Law().OrbitRadius()
}

// Validate rejects settings the control loop must not start with.
func (c *Config) Validate() error {
	if c.Vehicles < 1 {
		return fmt.Errorf("%w: vehicles must be at least 1, got %d", ErrInvalidConfiguration, c.Vehicles)
	}
	if err := c.Law().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if !(c.Dt > 0) {
		return fmt.Errorf("%w: dt must be positive, got %v", ErrInvalidConfiguration, c.Dt)
	}
	if c.Duration < 0 {
		return fmt.Errorf("%w: duration must not be negative, got %v", ErrInvalidConfiguration, c.Duration)
	}
	switch c.Scenario.Kind {
	case "line", "circle", "perturbed", "random":
	case "file":
		if c.Scenario.File == "" {
			return fmt.Errorf("%w: scenario kind \"file\" needs scenario.file", ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown scenario kind %q", ErrInvalidConfiguration, c.Scenario.Kind)
	}
	if c.Noise.Position < 0 || c.Noise.Yaw < 0 {
		return fmt.Errorf("%w: noise must not be negative", ErrInvalidConfiguration)
	}
	return nil
}

// ValidateNode checks the settings a vehicle node needs once its id is known.
func (c *Config) ValidateNode(id int) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if id < 0 || id >= c.Vehicles {
		return fmt.Errorf("%w: vehicle id %d outside [0, %d)", ErrInvalidConfiguration, id, c.Vehicles)
	}
	if c.Node.Rate <= 0 {
		return fmt.Errorf("%w: node rate must be positive, got %s", ErrInvalidConfiguration, c.Node.Rate)
	}
	if c.Node.StaleAfter < 0 {
		return fmt.Errorf("%w: stale-after must not be negative", ErrInvalidConfiguration)
	}
	if c.Node.LeaderID >= 0 && c.Node.RelayRate <= 0 {
		return fmt.Errorf("%w: relay rate must be positive", ErrInvalidConfiguration)
	}
	return nil
}
