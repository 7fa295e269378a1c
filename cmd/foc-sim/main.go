// foc-sim runs the field oriented control pipeline against a simulated
// PMSM and prints a summary of the run.
//
// Usage:
//
//	foc-sim [-config drive.cfg] [options]
//
// Options:
//
//	-config string     Drive config file, INI style or .yaml
//	-numeric string    Numeric variant: float or fixed (overrides [foc] numeric)
//	-ticks int         Control ticks to simulate (overrides [sim] ticks)
//	-logfile string    Also write the log to this file, rotated at 10 MB
//	-metrics string    Serve Prometheus metrics on this address
//	-telemetry string  Serve the websocket sample stream on this address
//	-json              Print the report as JSON
//	-trace             Enable debug logging
//
// Examples:
//
//	# One second of the default drive in Q16.16
//	foc-sim -numeric fixed -ticks 10000
//
//	# Stream samples while driving inverter PWM through sysfs
//	foc-sim -config drive.yaml -telemetry :9101
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nuttx-foc-go/pkg/config"
	"nuttx-foc-go/pkg/log"
	"nuttx-foc-go/pkg/metrics"
	"nuttx-foc-go/pkg/pwmout"
	"nuttx-foc-go/pkg/safety"
	"nuttx-foc-go/pkg/sim"
	"nuttx-foc-go/pkg/telemetry"
)

// simulator is the part of sim.Simulator shared by both numeric variants.
type simulator interface {
	AddObserver(sim.Observer)
	Run(ctx context.Context, ticks int) (*sim.Report, error)
	Close()
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout))
}

// realMain runs the command and returns the exit status: 0 on success, 1
// on failure, 2 for bad flags and 130 when interrupted.
func realMain(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("foc-sim", flag.ContinueOnError)
	configFile := fs.String("config", "", "Drive config file (.cfg or .yaml)")
	numeric := fs.String("numeric", "", "Numeric variant: float or fixed")
	ticks := fs.Int("ticks", 0, "Control ticks to simulate")
	logFile := fs.String("logfile", "", "Also write the log to this file")
	metricsAddr := fs.String("metrics", "", "Prometheus metrics listen address")
	telemetryAddr := fs.String("telemetry", "", "Telemetry websocket listen address")
	jsonOut := fs.Bool("json", false, "Print the report as JSON")
	trace := fs.Bool("trace", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	root := log.Default()
	if *trace {
		root.SetLevel(log.DEBUG)
	}
	if *logFile != "" {
		fw, err := log.TeeToFile(root, log.RotationConfig{Filename: *logFile})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			return 1
		}
		defer fw.Close()
	}
	logger := log.GetLogger("foc-sim")

	fc := config.DefaultFOCConfig()
	if *configFile != "" {
		var err error
		if fc, err = config.LoadFOC(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			return 1
		}
	}
	if *numeric != "" {
		fc.Numeric = *numeric
	}
	if *ticks > 0 {
		fc.Ticks = *ticks
	}
	if *metricsAddr != "" {
		mc := metrics.DefaultMetricsServerConfig()
		if fc.Metrics != nil {
			mc = *fc.Metrics
		}
		mc.Address = *metricsAddr
		fc.Metrics = &mc
	}
	if *telemetryAddr != "" {
		tc := telemetry.Config{Decimate: 10}
		if fc.Telemetry != nil {
			tc = *fc.Telemetry
		}
		tc.Addr = *telemetryAddr
		fc.Telemetry = &tc
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := 0
	rep, err := run(ctx, fc, logger)
	if rep != nil {
		if perr := printReport(stdout, rep, *jsonOut); perr != nil {
			logger.WithError(perr).Error("writing report")
			code = 1
		}
	}
	switch {
	case err != nil && ctx.Err() != nil:
		logger.Warn("simulation interrupted")
		return 130
	case err != nil:
		logger.WithError(err).Error("simulation failed")
		return 1
	}
	return code
}

func newSimulator(fc *config.FOCConfig) (simulator, error) {
	switch fc.Numeric {
	case config.NumericFloat:
		return sim.NewF32(fc.Sim)
	case config.NumericFixed:
		return sim.NewB16(fc.Sim)
	}
	return nil, fmt.Errorf("unknown numeric variant %q", fc.Numeric)
}

func run(ctx context.Context, fc *config.FOCConfig, logger *log.Logger) (*sim.Report, error) {
	s, err := newSimulator(fc)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	sink, err := pwmout.Open(fc.PWM)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.WithError(err).Warn("closing pwm output")
		}
	}()

	out := sink

	if fc.Safety != nil {
		sm := safety.New(*fc.Safety)
		sm.Register(safety.SinkDisabler{Sink: sink})
		s.AddObserver(sm)
		sm.StartWatchdog(ctx)
		defer sm.StopWatchdog()
		out = sm.Guard(sink)
	}
	s.AddObserver(sim.SinkObserver{Sink: out})

	if fc.Metrics != nil {
		m := metrics.NewFOCMetrics()
		s.AddObserver(m)
		srv := metrics.NewMetricsServerWithConfig(m, *fc.Metrics)
		errCh := srv.StartAsync()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				logger.WithError(err).Warn("metrics server shutdown")
			}
			if err := <-errCh; err != nil {
				logger.WithError(err).Warn("metrics server stopped")
			}
		}()
	}

	if fc.Telemetry != nil {
		ts := telemetry.New(*fc.Telemetry)
		s.AddObserver(ts)
		go func() {
			if err := ts.Start(); err != nil {
				logger.WithError(err).Warn("telemetry server stopped")
			}
		}()
		defer ts.Stop()
	}

	logger.WithFields(log.Fields{
		"numeric": fc.Numeric,
		"ticks":   fc.Ticks,
		"output":  fc.PWM.Kind,
	}).Info("simulation starting")

	start := time.Now()
	rep, err := s.Run(ctx, fc.Ticks)
	logger.WithField("wall", time.Since(start).Round(time.Millisecond).String()).Info("simulation finished")
	return rep, err
}

func printReport(w io.Writer, rep *sim.Report, asJSON bool) error {
	if !asJSON {
		_, err := fmt.Fprintln(w, rep)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
