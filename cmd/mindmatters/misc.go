// ABOUTME: Sync, stats, quote, location and reset commands
// ABOUTME: Each talks to the local store or the worker and prints a short summary

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/mindmatters/internal/external"
	"github.com/2389/mindmatters/internal/journal"
	"github.com/2389/mindmatters/internal/messaging"
)

// postWorker POSTs an empty body to a worker endpoint.
func postWorker(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, messageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", messaging.ErrNoWorker, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("worker returned status %d", resp.StatusCode)
	}
	return nil
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Ask the worker to deliver unsynced entries now",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			svc := journal.New(a.store, nil, a.logger)
			pending, err := svc.Pending(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d entries waiting to sync.\n", len(pending))
			if len(pending) == 0 {
				return nil
			}

			err = a.worker.Send(cmd.Context(), messaging.Message{Type: messaging.TypeSyncNow})
			if errors.Is(err, messaging.ErrNoWorker) {
				return fmt.Errorf("worker not running; start it with 'mindmatters-worker serve'")
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Sync requested.")
			return nil
		}),
	}
}

func newStatsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize moods and how they relate to the weather",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			svc := journal.New(a.store, nil, a.logger)
			entries := svc.Recent(cmd.Context(), 0)
			stats := journal.Summarize(entries)
			patterns := journal.AnalyzeWeather(entries)

			if format == formatJSON {
				return writeJSON(a.out, map[string]any{"stats": stats, "weather": patterns})
			}
			renderStats(a.out, stats, patterns)
			return nil
		}),
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table or json")
	return cmd
}

func newQuoteCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Show today's quote",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			q := external.NewQuoteClient(external.QuoteConfig{
				URLs:    a.cfg.External.QuoteURLs,
				Timeout: a.cfg.External.Timeout,
				Store:   a.store,
				Logger:  a.logger,
			})
			quote, source := q.Daily(cmd.Context(), refresh)

			color.New(color.FgCyan).Fprintf(a.out, "“%s”\n", quote.Text)
			fmt.Fprintf(a.out, "    - %s\n", quote.Author)
			if verbose {
				color.New(color.FgHiBlack).Fprintf(a.out, "(%s)\n", source)
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Fetch a new quote instead of today's")
	return cmd
}

func newLocationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "location",
		Short: "Show the location used for weather",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			loc := a.geoClient().Locate(cmd.Context())
			place := loc.Country
			if loc.City != "" {
				place = fmt.Sprintf("%s, %s", loc.City, loc.Country)
			}
			fmt.Fprintf(a.out, "%s (%s)\n", place, loc.CountryCode)
			if loc.HasCoordinates() {
				fmt.Fprintf(a.out, "Coordinates: %.4f, %.4f\n", loc.Latitude, loc.Longitude)
			} else {
				fmt.Fprintf(a.out, "Coordinates: %.4f, %.4f (configured)\n",
					a.cfg.External.Latitude, a.cfg.External.Longitude)
			}
			return nil
		}),
	}
}

func newResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every journal entry",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if !yes {
				return errors.New("this deletes all entries; pass --yes to confirm")
			}
			if err := journal.New(a.store, nil, a.logger).Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "All entries deleted.")
			return nil
		}),
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}
