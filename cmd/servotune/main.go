// Command servotune runs sine and step excitation tests against a simulated
// and a real actuator endpoint at the same time, and renders a comparison
// plot with step overshoot figures for gain tuning.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "servotune.yml"

	k = koanf.New(".")
)

// Config holds every parameter of a test run.  Defaults are overlaid by the
// yaml file, which is overlaid by explicitly set flags.
type Config struct {
	Name       string `koanf:"name" yaml:"name"`
	SimAddr    string `koanf:"sim_addr" yaml:"sim_addr"`
	RealAddr   string `koanf:"real_addr" yaml:"real_addr"`
	ActuatorID int    `koanf:"actuator_id" yaml:"actuator_id"`
	Test       string `koanf:"test" yaml:"test"`

	// sine parameters
	Freq        float64 `koanf:"freq" yaml:"freq"`
	Amp         float64 `koanf:"amp" yaml:"amp"`
	Duration    float64 `koanf:"duration" yaml:"duration"`
	CommandRate float64 `koanf:"command_rate" yaml:"command_rate"`

	// step parameters
	StepSize   float64 `koanf:"step_size" yaml:"step_size"`
	StepHold   float64 `koanf:"step_hold" yaml:"step_hold"`
	StepCount  int     `koanf:"step_count" yaml:"step_count"`
	VelLimit   float64 `koanf:"vel_limit" yaml:"vel_limit"`
	SampleRate float64 `koanf:"sample_rate" yaml:"sample_rate"`

	// simulator gains
	SimKp float64 `koanf:"sim_kp" yaml:"sim_kp"`
	SimKv float64 `koanf:"sim_kv" yaml:"sim_kv"`

	// real actuator gains and limits
	Kp           float64 `koanf:"kp" yaml:"kp"`
	Kd           float64 `koanf:"kd" yaml:"kd"`
	Ki           float64 `koanf:"ki" yaml:"ki"`
	Acceleration float64 `koanf:"acceleration" yaml:"acceleration"`
	MaxTorque    float64 `koanf:"max_torque" yaml:"max_torque"`
	TorqueOff    bool    `koanf:"torque_off" yaml:"torque_off"`

	// output
	NoPlot bool   `koanf:"no_plot" yaml:"no_plot"`
	OutDir string `koanf:"out_dir" yaml:"out_dir"`
}

func defaults() Config {
	return Config{
		Name:        "bench",
		SimAddr:     "127.0.0.1:7701",
		RealAddr:    "192.168.42.1:7701",
		ActuatorID:  1,
		Test:        "sine",
		Freq:        1.0,
		Amp:         5.0,
		Duration:    5.0,
		CommandRate: 50.0,
		StepSize:    10.0,
		StepHold:    3.0,
		StepCount:   2,
		VelLimit:    400.0,
		SampleRate:  50.0,
		SimKp:       24.0,
		SimKv:       0.75,
		Kp:          20.0,
		Kd:          55.0,
		Ki:          0.01,
		Acceleration: 2000.0,
		MaxTorque:    100.0,
		OutDir:       "plots",
	}
}

func setupconfig(args []string) Config {
	k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		if !strings.Contains(err.Error(), "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}

	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.String("name", "", "name for plot titles")
	fs.String("sim-addr", "", "simulator endpoint address")
	fs.String("real-addr", "", "real robot endpoint address")
	fs.Int("actuator-id", 0, "actuator ID to test")
	fs.String("test", "", "test to run, sine or step")
	fs.Float64("freq", 0, "sine frequency (Hz)")
	fs.Float64("amp", 0, "sine amplitude (deg)")
	fs.Float64("duration", 0, "sine test duration (s)")
	fs.Float64("command-rate", 0, "sine command rate (Hz)")
	fs.Float64("step-size", 0, "step size (deg)")
	fs.Float64("step-hold", 0, "hold per step phase (s)")
	fs.Int("step-count", 0, "number of step cycles")
	fs.Float64("vel-limit", 0, "velocity limit recorded with step commands (deg/s)")
	fs.Float64("sample-rate", 0, "step sampling rate (Hz)")
	fs.Float64("sim-kp", 0, "simulator proportional gain")
	fs.Float64("sim-kv", 0, "simulator damping gain")
	fs.Float64("kp", 0, "proportional gain")
	fs.Float64("kd", 0, "derivative gain")
	fs.Float64("ki", 0, "integral gain")
	fs.Float64("acceleration", 0, "acceleration limit (deg/s^2)")
	fs.Float64("max-torque", 0, "torque clamp (percent)")
	fs.Bool("torque-off", false, "run with the output stage disabled")
	fs.Bool("no-plot", false, "skip the comparison plot")
	fs.String("out-dir", "", "directory plots are written to")
	fs.Parse(args)

	// only flags the user actually set override the file
	set := map[string]interface{}{}
	fs.Visit(func(f *flag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		set[key] = f.Value.(flag.Getter).Get()
	})
	if len(set) > 0 {
		k.Load(confmap.Provider(set, "."), nil)
	}

	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		log.Fatal(err)
	}
	return c
}

func (c Config) validate() error {
	switch c.Test {
	case "sine":
		if c.Freq <= 0 {
			return fmt.Errorf("freq must be > 0, got %g", c.Freq)
		}
		if c.Duration <= 0 {
			return fmt.Errorf("duration must be > 0, got %g", c.Duration)
		}
		if c.CommandRate <= 0 {
			return fmt.Errorf("command-rate must be > 0, got %g", c.CommandRate)
		}
	case "step":
		if c.StepSize == 0 {
			return fmt.Errorf("step-size must be nonzero")
		}
		if c.StepHold <= 0 {
			return fmt.Errorf("step-hold must be > 0, got %g", c.StepHold)
		}
		if c.StepCount < 1 {
			return fmt.Errorf("step-count must be >= 1, got %d", c.StepCount)
		}
		if c.SampleRate <= 0 {
			return fmt.Errorf("sample-rate must be > 0, got %g", c.SampleRate)
		}
	default:
		return fmt.Errorf("unknown test %q, expected sine or step", c.Test)
	}
	return nil
}

func root() {
	str := `servotune runs one excitation test (sine or step) against a simulated and a
real actuator endpoint at the same time, then renders a comparison plot and,
for step tests, the maximum overshoot per target.

Usage:
	servotune <command> [flags]

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `servotune is amenable to configuration via its .yaml file (servotune.yml);
explicitly passed flags take precedence over the file.

Run 'servotune run' with two reachable actd endpoints.  cmd/actsim provides a
simulated endpoint when no simulator is on the bench.

Flags mirror the configuration keys with hyphens for underscores, e.g.
--step-size sets step_size.  See 'servotune conf' for the active values.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := yml.NewEncoder(f).Encode(c); err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	if err := yml.NewEncoder(os.Stdout).Encode(c); err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("servotune version %v\n", Version)
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	switch strings.ToLower(args[1]) {
	case "help":
		root()
		help()
	case "mkconf":
		setupconfig(nil)
		mkconf()
	case "conf":
		setupconfig(nil)
		printconf()
	case "version":
		pversion()
	case "run":
		c := setupconfig(args[2:])
		if err := c.validate(); err != nil {
			log.Fatal("invalid configuration: ", err)
		}
		run(c)
	default:
		log.Fatal("unknown command ", args[1])
	}
}
