package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/comalice/safetyx"
	"github.com/comalice/safetyx/hal"
	"github.com/comalice/safetyx/internal/config"
	"github.com/comalice/safetyx/internal/production"
	"github.com/comalice/safetyx/internal/telemetry"
	"github.com/comalice/safetyx/realtime"
)

// errShutdownTimeout is returned when the machine does not reach its off
// level in time after a shutdown request.
var errShutdownTimeout = errors.New("shutdown timed out before reaching the off level")

type runOptions struct {
	config.Settings
	Events          []string
	ReportFormat    string
	ShutdownAfter   time.Duration
	ShutdownTimeout time.Duration
}

var runOpts runOptions

func init() {
	rootCmd.AddCommand(runCmd)
	f := runCmd.Flags()
	f.StringVarP(&runOpts.Config, "config", "c", "", "Safety configuration YAML (default: bundled robot; env SAFETYX_CONFIG)")
	f.DurationVar(&runOpts.Tick, "tick", 0, "Cycle period override (env SAFETYX_TICK)")
	f.StringVar(&runOpts.Inputs, "inputs", "", "YAML file of simulated inputs, reloaded on change (env SAFETYX_INPUTS)")
	f.StringVar(&runOpts.Journal, "journal", "", "SQLite journal of safety records (env SAFETYX_JOURNAL)")
	f.StringVar(&runOpts.Report, "report", "", "Directory for the run report (env SAFETYX_REPORT)")
	f.StringVar(&runOpts.ReportFormat, "report-format", "yaml", "Run report format (yaml|json)")
	f.StringVar(&runOpts.OTelEndpoint, "otel-endpoint", "", "OTLP/HTTP trace endpoint (env SAFETYX_OTEL_ENDPOINT)")
	f.Uint64Var(&runOpts.MaxCycles, "max-cycles", 0, "Request shutdown after this many cycles (env SAFETYX_MAX_CYCLES)")
	f.StringSliceVarP(&runOpts.Events, "event", "e", nil, "Public events to send once the machine is running")
	f.DurationVar(&runOpts.ShutdownAfter, "shutdown-after", 0, "Request shutdown after this long")
	f.DurationVar(&runOpts.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "How long to wait for the off level after a shutdown request")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a safety machine until it halts",
	Long: "Runs the machine one cycle per tick against simulated IO. SIGINT or SIGTERM\n" +
		"requests a shutdown; the command returns once the off level halts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := config.ParseEnv()
		if err != nil {
			return err
		}
		opts := mergeEnv(cmd, runOpts, env)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runSafety(ctx, cmd.OutOrStdout(), newLogger(), opts)
	},
}

// mergeEnv fills every option whose flag was not given from the environment.
func mergeEnv(cmd *cobra.Command, o runOptions, env config.Settings) runOptions {
	changed := cmd.Flags().Changed
	if !changed("config") {
		o.Config = env.Config
	}
	if !changed("tick") {
		o.Tick = env.Tick
	}
	if !changed("inputs") {
		o.Inputs = env.Inputs
	}
	if !changed("journal") {
		o.Journal = env.Journal
	}
	if !changed("report") {
		o.Report = env.Report
	}
	if !changed("otel-endpoint") {
		o.OTelEndpoint = env.OTelEndpoint
	}
	if !changed("max-cycles") {
		o.MaxCycles = env.MaxCycles
	}
	return o
}

// runSafety runs the machine until it halts. Cancelling ctx requests an
// orderly shutdown rather than stopping the loop.
func runSafety(ctx context.Context, out io.Writer, logger *log.Logger, o runOptions) error {
	pub := production.NewChannelPublisher(256)
	m, period, err := loadMachine(o.Config, o.Tick, logger,
		safetyx.WithObserver(pub),
		safetyx.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	sim := hal.NewSim(m.IO())
	m.SetIO(sim)
	bg, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	if o.Inputs != "" {
		fi := hal.NewFileInputs(o.Inputs, sim, logger)
		if err := fi.Load(); err != nil {
			return err
		}
		go func() {
			if err := fi.Run(bg); err != nil {
				logger.Printf("inputs: %v", err)
			}
		}()
	}

	shutdownTracing, err := telemetry.Setup(ctx, "safetyctl", o.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Printf("telemetry shutdown: %v", err)
		}
	}()

	var sinks []production.Sink
	if o.Journal != "" {
		j, err := production.OpenJournal(o.Journal, m.Name())
		if err != nil {
			return err
		}
		defer j.Close()
		sinks = append(sinks, j)
	}
	if o.OTelEndpoint != "" {
		sinks = append(sinks, production.NewSpanRecorder(nil, m.Name()))
	}
	pumped := make(chan struct{})
	go func() {
		production.Pump(bg, pub.Records(), logger, sinks...)
		close(pumped)
	}()

	rt := realtime.NewRuntime(m, realtime.Config{TickRate: period, Logger: logger})
	if err := rt.Start(bg); err != nil {
		return err
	}
	logger.Printf("running %s at %v per cycle from %s", m.Name(), period, m.CurrentLevel().Name())
	for _, name := range o.Events {
		ev, ok := m.Event(name)
		if !ok {
			logger.Printf("unknown event %q ignored", name)
			continue
		}
		if err := rt.SendEvent(ev); err != nil {
			logger.Printf("send %s: %v", name, err)
		}
	}

	runErr := supervise(ctx, rt, logger, o)

	_ = pub.Close()
	<-pumped
	if d := pub.Dropped(); d > 0 {
		logger.Printf("%d records dropped", d)
	}

	report := production.Snapshot(m)
	if o.Report != "" {
		p, err := production.NewPersister(o.Report, o.ReportFormat)
		if err != nil {
			return err
		}
		if err := p.Save(context.Background(), report); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "%s: level %s after %d cycles, halted=%t, transitions=%d, faults=%d\n",
		report.Machine, report.Level, report.Cycle, report.Halted,
		report.Diagnostics.Transitions,
		report.Diagnostics.InputFaults+report.Diagnostics.OutputFaults+report.Diagnostics.ActionPanics)
	return runErr
}

// supervise waits for the runtime to halt, requesting a shutdown on signal,
// after ShutdownAfter or at MaxCycles. If the off level is not reached within
// ShutdownTimeout the loop is stopped.
func supervise(ctx context.Context, rt *realtime.Runtime, logger *log.Logger, o runOptions) error {
	var after <-chan time.Time
	if o.ShutdownAfter > 0 {
		t := time.NewTimer(o.ShutdownAfter)
		defer t.Stop()
		after = t.C
	}
	var poll <-chan time.Time
	if o.MaxCycles > 0 {
		t := time.NewTicker(10 * time.Millisecond)
		defer t.Stop()
		poll = t.C
	}

	sig := ctx.Done()
	var deadline <-chan time.Time
	requested := false
	request := func(why string) {
		if requested {
			return
		}
		requested = true
		sig, after, poll = nil, nil, nil
		logger.Printf("shutdown requested: %s", why)
		if err := rt.RequestShutdown(); err != nil {
			logger.Printf("request shutdown: %v", err)
		}
		if o.ShutdownTimeout > 0 {
			deadline = time.After(o.ShutdownTimeout)
		}
	}

	for {
		select {
		case <-rt.Done():
			return rt.Wait()
		case <-sig:
			request("signal")
		case <-after:
			request("timer")
		case <-poll:
			if rt.Machine().Cycle() >= o.MaxCycles {
				request(fmt.Sprintf("%d cycles", o.MaxCycles))
			}
		case <-deadline:
			logger.Printf("still in %s, stopping the loop", rt.CurrentLevel().Name())
			_ = rt.Stop()
			return errShutdownTimeout
		}
	}
}
