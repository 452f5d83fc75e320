package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/multy/internal/filter"
	"github.com/muurk/multy/internal/logging"
	"github.com/muurk/multy/internal/state"
	"github.com/muurk/multy/internal/ui"
)

var (
	watchFilter string
	watchPlain  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the router and print change events",
	Long: `Poll the router on the configured interval and print every change.

Events are diffed against the snapshots saved by the previous run, so only
what changed while multy-cli was not running is reported on start. On a
terminal a live view is shown; use --plain or --json for line output.

--filter takes an expression over each event:

  kind       "change", "resource-unavailable" or "resource-recovered"
  resource   resource name
  added      ids of added entities
  removed    ids of removed entities
  updated    field changes, each with entity, field, old and new
  fields     names of the changed fields
  entities   ids of every entity the event touches
  error      failure message of an unavailable event`,
	Example: `  # Watch everything
  multy-cli watch

  # Only client connects and disconnects
  multy-cli watch --filter 'resource == "network-devices" && (len(added) > 0 || len(removed) > 0)'

  # Mesh node status changes as JSON lines
  multy-cli watch --json --filter 'resource == "mesh-nodes" && "status" in fields'`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchFilter, "filter", "", "Only show events matching this expression")
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "Print events as text instead of the live view")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	f, err := filter.Compile(watchFilter)
	if err != nil {
		return err
	}
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.close()
	eng.enableStore()

	events, cancel := eng.cache.Subscribe(state.DefaultSubscriberBuffer)
	g, ctx := errgroup.WithContext(cmd.Context())
	matched := filterEvents(ctx, events, f)

	g.Go(func() error {
		defer cancel()
		return eng.scheduler.Run(ctx)
	})

	live := !watchPlain && !jsonOutput && ui.IsTerminal()
	g.Go(func() error {
		if live {
			model := ui.NewLiveModel("watching "+eng.device.Host, eng.resourceNames(), matched, eng.cache)
			model.Filter = formatFilter(f.String())
			err := ui.RunLive(ctx, model)
			if err == nil {
				// The user quit; stop polling too
				err = context.Canceled
			}
			return err
		}
		return printEvents(ctx, matched)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// filterEvents forwards events that match f. The returned channel closes
// when events does or ctx is done.
func filterEvents(ctx context.Context, events <-chan state.Event, f *filter.Filter) <-chan state.Event {
	out := make(chan state.Event, state.DefaultSubscriberBuffer)
	go func() {
		defer close(out)
		for ev := range events {
			ok, err := f.Match(ev)
			if err != nil {
				logging.Warn("Filter evaluation failed", zap.String("event", ev.ID), zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func printEvents(ctx context.Context, events <-chan state.Event) error {
	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if jsonOutput {
				if err := enc.Encode(ev); err != nil {
					return err
				}
				continue
			}
			fmt.Print(ui.RenderEvent(ev))
		}
	}
}

// formatFilter shortens a filter for headers.
func formatFilter(source string) string {
	source = strings.Join(strings.Fields(source), " ")
	if len(source) > 60 {
		return source[:57] + "..."
	}
	return source
}
