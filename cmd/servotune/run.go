package main

import (
	"fmt"
	"log"
	"time"

	"github.com/theckman/yacspin"

	"github.com/servokit/servotune/actd"
	"github.com/servokit/servotune/actuator"
	"github.com/servokit/servotune/plot"
	"github.com/servokit/servotune/tune"
)

// outcome is one driver run's result, handed back over the join channel.
type outcome struct {
	label string
	rec   *tune.Record
	err   error
}

func run(c Config) {
	spin := spinner()
	spin.Start()
	spin.Message(fmt.Sprintf("connecting to sim %s and real %s", c.SimAddr, c.RealAddr))

	simClient := actd.NewClient(c.SimAddr)
	realClient := actd.NewClient(c.RealAddr)
	defer simClient.Close()
	defer realClient.Close()

	// one origin, captured before either run starts, so both records share a
	// time axis
	start := time.Now()

	simDriver := &tune.Driver{
		Controller:    simClient,
		ID:            c.ActuatorID,
		Real:          false,
		Gains:         actuator.Gains{Kp: c.Kp, Kd: c.Kd, Ki: c.Ki},
		SimKp:         c.SimKp,
		SimKv:         c.SimKv,
		Acceleration:  c.Acceleration,
		MaxTorque:     c.MaxTorque,
		TorqueEnabled: !c.TorqueOff,
		Start:         start,
	}
	realDriver := &tune.Driver{
		Controller:    realClient,
		ID:            c.ActuatorID,
		Real:          true,
		Gains:         actuator.Gains{Kp: c.Kp, Kd: c.Kd, Ki: c.Ki},
		SimKp:         c.SimKp,
		SimKv:         c.SimKv,
		Acceleration:  c.Acceleration,
		MaxTorque:     c.MaxTorque,
		TorqueEnabled: !c.TorqueOff,
		Start:         start,
	}

	spin.Message(fmt.Sprintf("running %s test on actuator %d", c.Test, c.ActuatorID))
	results := make(chan outcome, 2)
	launch := func(label string, d *tune.Driver) {
		go func() {
			var rec *tune.Record
			var err error
			switch c.Test {
			case "sine":
				rec, err = d.RunSine(tune.SineProfile{
					Amplitude:    c.Amp,
					Freq:         c.Freq,
					Duration:     c.Duration,
					Rate:         c.CommandRate,
					RequestState: true,
				})
			case "step":
				rec, err = d.RunStep(tune.StepProfile{
					Size:       c.StepSize,
					Hold:       c.StepHold,
					Count:      c.StepCount,
					VelLimit:   c.VelLimit,
					SampleRate: c.SampleRate,
				})
			}
			results <- outcome{label: label, rec: rec, err: err}
		}()
	}
	launch("sim", simDriver)
	launch("real", realDriver)

	// join barrier: both runs complete before anything is reported or drawn
	var simRec, realRec *tune.Record
	var failed bool
	for i := 0; i < 2; i++ {
		res := <-results
		if res.err != nil {
			log.Printf("%s run failed: %v", res.label, res.err)
			failed = true
			continue
		}
		if res.label == "sim" {
			simRec = res.rec
		} else {
			realRec = res.rec
		}
	}
	if failed {
		spin.StopFailMessage("test failed")
		spin.StopFail()
		// no plot on failure; a partial image is worse than none
		log.Fatal("aborting, one or both runs did not complete")
	}
	spin.StopMessage("test complete")
	spin.Stop()

	log.Printf("sim: %d samples, %d commands; real: %d samples, %d commands",
		simRec.Samples(), simRec.Commands(), realRec.Samples(), realRec.Commands())

	if c.NoPlot {
		return
	}
	path, err := plot.Comparison(simRec, realRec, plotOptions(c, simRec, realRec))
	if err != nil {
		log.Fatal(err)
	}
	log.Println("saved comparison plot to", path)
}

// plotOptions builds the figure annotation, including per-target overshoot
// for step tests.
func plotOptions(c Config, simRec, realRec *tune.Record) plot.Options {
	opts := plot.Options{
		Dir:             c.OutDir,
		Kind:            c.Test,
		Timestamp:       time.Now(),
		VelocityCommand: c.Test == "sine",
	}
	switch c.Test {
	case "sine":
		opts.SimTitle = fmt.Sprintf("%s -- Sine -- Actuator %d\nFreq %g Hz, Amp %g deg, Cmd %g Hz\nSim Kp %g Kv %g",
			c.Name, c.ActuatorID, c.Freq, c.Amp, c.CommandRate, c.SimKp, c.SimKv)
		opts.RealTitle = fmt.Sprintf("%s -- Sine -- Actuator %d\nFreq %g Hz, Amp %g deg, Cmd %g Hz\nReal Kp %g Kd %g Ki %g",
			c.Name, c.ActuatorID, c.Freq, c.Amp, c.CommandRate, c.Kp, c.Kd, c.Ki)
	case "step":
		sched := tune.NewStepSchedule(c.StepSize, c.StepHold, c.VelLimit, c.StepCount)
		simOv := headline(simRec, sched)
		realOv := headline(realRec, sched)
		opts.SimTitle = fmt.Sprintf("%s -- Step -- Actuator %d\nSize %g deg, Hold %g s, Count %d\nSim Kp %g Kv %g  Overshoot %.1f%%",
			c.Name, c.ActuatorID, c.StepSize, c.StepHold, c.StepCount, c.SimKp, c.SimKv, simOv)
		opts.RealTitle = fmt.Sprintf("%s -- Step -- Actuator %d\nSize %g deg, Hold %g s, Count %d\nReal Kp %g Kd %g Ki %g  Overshoot %.1f%%",
			c.Name, c.ActuatorID, c.StepSize, c.StepHold, c.StepCount, c.Kp, c.Kd, c.Ki, realOv)
	}
	return opts
}

func headline(rec *tune.Record, sched tune.StepSchedule) float64 {
	ovs, err := tune.StepOvershoots(rec.Time, rec.Position, sched, tune.DefaultWindow)
	if err != nil {
		log.Println("overshoot analysis:", err)
		return 0
	}
	return tune.MaxOvershoot(ovs)
}

func spinner() *yacspin.Spinner {
	cfg := yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " servotune",
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	}
	s, err := yacspin.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	return s
}
