package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/timedautomata/pkg/timedautomata"
	"github.com/randalmurphal/timedautomata/pkg/timedautomata/config"
	"github.com/randalmurphal/timedautomata/pkg/timedautomata/pattern"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config string
	Events string
	Drain  time.Duration
}

// Delivery is one event handed to the output, with the time since the run
// started.
type Delivery struct {
	Offset time.Duration
	Event  Event
}

// RunSummary describes a finished run.
type RunSummary struct {
	SessionID string `json:"session_id"`
	Pushed    int    `json:"pushed"`
	Delivered int    `json:"delivered"`
	Cycles    int64  `json:"cycles"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Push an events file through the configured automata",
		Long: `Push events through a discriminator and print what comes out.

The config file holds engine settings under "engine" and pattern
automata under "automata". Each events line is a JSON object:

  {"at": "150ms", "fields": {"key": "a"}}

Events are pushed at their offsets. Every delivered event is printed with
the offset at which it was delivered.

Examples:
  tadiscrim run --config automata.yaml --events events.jsonl
  tadiscrim run --config automata.yaml --events - --drain 2s --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "engine and automata config file (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().StringVarP(&opts.Events, "events", "e", "", "JSON lines events file, - for stdin (required)")
	_ = cmd.MarkFlagRequired("events")
	cmd.Flags().DurationVar(&opts.Drain, "drain", time.Second, "time to wait for output after the last push")

	return cmd
}

func runRun(ctx context.Context, opts *RunOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Drain < 0 {
		return WrapExitError(ExitCommandError, "invalid drain", fmt.Errorf("must not be negative: %s", opts.Drain))
	}

	settings, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load settings", err)
	}
	if opts.Verbose {
		settings.LogLevel = "debug"
	}
	specs, err := pattern.LoadSpecs(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load automata", err)
	}
	events, err := ReadEventsFile(opts.Events)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	logger := settings.NewLogger(cmd.ErrOrStderr())
	d, err := timedautomata.New[Event](
		timedautomata.WithSettings(settings),
		timedautomata.WithLogger(logger),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create discriminator", err)
	}
	for _, spec := range specs {
		st, err := pattern.Build(spec, eventFields, recognized)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to build automaton", err)
		}
		if err := d.AddInitialState(st, timedautomata.WithName(spec.Name)); err != nil {
			return WrapExitError(ExitCommandError, "failed to register automaton", err)
		}
	}

	out := newPrinter(opts.Format, cmd.OutOrStdout())
	var start time.Time
	delivered := 0
	d.SetNotifyFunc(func(ev Event) {
		delivered++
		del := Delivery{Offset: time.Since(start), Event: ev}
		if err := out.print(del.record(), del.String()); err != nil {
			logger.Warn("print delivery failed", "error", err)
		}
	})

	start = time.Now()
	// The engine holds no resources until Start, so earlier returns leak nothing.
	if err := d.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}
	pushed, pushErr := pushEvents(ctx, d, events, start)
	if pushErr == nil {
		pushErr = sleepContext(ctx, opts.Drain)
	}
	stopErr := d.Stop()

	summary := RunSummary{
		SessionID: d.SessionID(),
		Pushed:    pushed,
		Delivered: delivered,
		Cycles:    d.Cycles(),
	}
	if opts.Verbose || opts.Format == "json" {
		text := fmt.Sprintf("session %s: pushed %d, delivered %d, cycles %d",
			summary.SessionID, summary.Pushed, summary.Delivered, summary.Cycles)
		_ = out.print(map[string]any{"summary": summary}, text)
	}

	if pushErr != nil {
		return WrapExitError(ExitFailure, "run interrupted", pushErr)
	}
	if stopErr != nil {
		return WrapExitError(ExitFailure, "failed to stop", stopErr)
	}
	return nil
}

// pushEvents pushes each event once its offset from start has passed.
func pushEvents(ctx context.Context, d *timedautomata.Discriminator[Event], events []Event, start time.Time) (int, error) {
	for i, ev := range events {
		if err := sleepContext(ctx, time.Until(start.Add(ev.At))); err != nil {
			return i, err
		}
		if err := d.Push(ev); err != nil {
			return i, err
		}
	}
	return len(events), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d Delivery) record() map[string]any {
	return map[string]any{
		"offset_ms": d.Offset.Milliseconds(),
		"event":     d.Event,
	}
}

func (d Delivery) String() string {
	return fmt.Sprintf("%7dms  %s", d.Offset.Milliseconds(), d.Event)
}
