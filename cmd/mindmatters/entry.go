// ABOUTME: Entry commands: add, list and today
// ABOUTME: New entries are stored locally first, then the worker is asked to sync

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/2389/mindmatters/internal/external"
	"github.com/2389/mindmatters/internal/journal"
	"github.com/2389/mindmatters/internal/messaging"
)

func newEntryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Write and read journal entries",
	}
	cmd.AddCommand(newEntryAddCmd())
	cmd.AddCommand(newEntryListCmd())
	cmd.AddCommand(newEntryTodayCmd())
	return cmd
}

func (a *app) weatherClient(ctx context.Context, useGeo bool) *external.WeatherClient {
	ext := a.cfg.External
	w := external.NewWeatherClient(external.WeatherConfig{
		URL:       ext.WeatherURL,
		Latitude:  ext.Latitude,
		Longitude: ext.Longitude,
		Timeout:   ext.Timeout,
		Store:     a.store,
		Logger:    a.logger,
	})
	if !useGeo {
		return w
	}
	loc := a.geoClient().Locate(ctx)
	if loc.HasCoordinates() {
		return w.WithLocation(loc.Latitude, loc.Longitude)
	}
	return w
}

func (a *app) geoClient() *external.GeoClient {
	return external.NewGeoClient(external.GeoConfig{
		URL:     a.cfg.External.GeoURL,
		Timeout: a.cfg.External.Timeout,
		Logger:  a.logger,
	})
}

// requestSync asks the worker to sync now. The entry is already stored, so
// an unreachable worker only delays delivery.
func (a *app) requestSync(ctx context.Context) {
	err := a.worker.Send(ctx, messaging.Message{Type: messaging.TypeSyncNow})
	switch {
	case err == nil:
		fmt.Fprintln(a.out, "Sync requested.")
	case errors.Is(err, messaging.ErrNoWorker):
		fmt.Fprintln(a.out, "Worker not running; the entry will sync later.")
	default:
		a.logger.Warn("sync request failed", "error", err)
	}
}

func newEntryAddCmd() *cobra.Command {
	var (
		moodValue  int
		mood       string
		thoughts   string
		gratitude  string
		activities []string
		noWeather  bool
		useGeo     bool
		noSync     bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record how you feel",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			ctx := cmd.Context()

			var weather journal.WeatherSource
			if !noWeather {
				weather = a.weatherClient(ctx, useGeo)
			}
			svc := journal.New(a.store, weather, a.logger)

			entry, err := svc.Save(ctx, journal.EntryInput{
				MoodValue:  moodValue,
				Mood:       mood,
				Thoughts:   thoughts,
				Gratitude:  gratitude,
				Activities: activities,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Saved entry %d: %d (%s)", entry.ID, entry.MoodValue, entry.Mood)
			if entry.Weather != nil {
				fmt.Fprintf(a.out, ", %s", describeSnapshot(entry.Weather))
			}
			fmt.Fprintln(a.out)

			if !noSync {
				a.requestSync(ctx)
			}
			return nil
		}),
	}

	cmd.Flags().IntVarP(&moodValue, "mood", "m", 0, "Mood from 1 (awful) to 10 (great)")
	cmd.Flags().StringVar(&mood, "label", "", "Mood label (derived from --mood when empty)")
	cmd.Flags().StringVarP(&thoughts, "thoughts", "t", "", "What's on your mind")
	cmd.Flags().StringVarP(&gratitude, "gratitude", "g", "", "Something you're grateful for")
	cmd.Flags().StringSliceVarP(&activities, "activity", "a", nil, "Activity tag (repeatable)")
	cmd.Flags().BoolVar(&noWeather, "no-weather", false, "Don't attach current weather")
	cmd.Flags().BoolVar(&useGeo, "geo", false, "Use IP geolocation for the weather lookup")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "Don't ask the worker to sync")
	_ = cmd.MarkFlagRequired("mood")

	return cmd
}

func newEntryListCmd() *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent entries, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			svc := journal.New(a.store, nil, a.logger)
			return renderEntries(a.out, svc.Recent(cmd.Context(), limit), format)
		}),
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show (0 for all)")
	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table or json")
	return cmd
}

func newEntryTodayCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "today",
		Short: "Show today's entries",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			svc := journal.New(a.store, nil, a.logger)
			return renderEntries(a.out, svc.Today(cmd.Context()), format)
		}),
	}

	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table or json")
	return cmd
}
