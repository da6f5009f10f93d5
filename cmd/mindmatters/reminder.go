// ABOUTME: Reminder and notification-permission commands
// ABOUTME: Settings are saved locally; the worker is told to schedule or cancel

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/mindmatters/internal/notify"
)

func (a *app) scheduler() *notify.Scheduler {
	return notify.NewScheduler(a.store, a.worker, notify.SchedulerConfig{
		Title:       a.cfg.Notifications.Title,
		Body:        a.cfg.Notifications.Body,
		JournalPath: a.cfg.Notifications.JournalPath,
		Logger:      a.logger,
	})
}

func newReminderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminder",
		Short: "Manage the daily check-in reminder",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <HH:MM>",
		Short: "Remind me every day at this time",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			rt, err := notify.ParseReminderTime(args[0])
			if err != nil {
				return err
			}
			next, err := a.scheduler().Schedule(cmd.Context(), rt.Hour, rt.Minute)
			if errors.Is(err, notify.ErrPermissionDenied) {
				return fmt.Errorf("%w; run 'mindmatters notifications allow' first", err)
			}
			if errors.Is(err, notify.ErrHandoff) {
				color.New(color.FgYellow).Fprintf(a.out, "Reminder saved, but the worker could not be reached.\n")
				fmt.Fprintf(a.out, "It will be scheduled the next time the worker runs.\n")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Daily reminder set for %s. Next: %s\n", rt, next.Format("Mon Jan 02 15:04"))
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel",
		Short: "Turn the daily reminder off",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			err := a.scheduler().Cancel(cmd.Context())
			if errors.Is(err, notify.ErrHandoff) {
				color.New(color.FgYellow).Fprintf(a.out, "Reminder disabled, but the worker could not be reached.\n")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Daily reminder cancelled.")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show reminder settings",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			s := a.scheduler()
			settings, err := s.Status(cmd.Context())
			if err != nil {
				return err
			}
			perm, err := s.Permission(cmd.Context())
			if err != nil {
				return err
			}

			state := "off"
			if settings.Enabled {
				state = "on"
			}
			fmt.Fprintf(a.out, "Reminder:    %s at %s\n", state, settings.ReminderTime)
			fmt.Fprintf(a.out, "Permission:  %s\n", perm)
			if settings.Enabled {
				next := notify.NextOccurrence(time.Now(), settings.ReminderTime)
				fmt.Fprintf(a.out, "Next:        %s\n", next.Format("Mon Jan 02 15:04"))
			}
			return nil
		}),
	})

	return cmd
}

func newNotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Manage notification permission",
	}

	setPermission := func(use string, p notify.Permission, short string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				if err := a.scheduler().SetPermission(cmd.Context(), p); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Notification permission: %s\n", p)
				return nil
			}),
		}
	}
	cmd.AddCommand(setPermission("allow", notify.PermissionGranted, "Allow reminder notifications"))
	cmd.AddCommand(setPermission("deny", notify.PermissionDenied, "Block reminder notifications"))

	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Ask the worker to display a test notification",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			if err := postWorker(cmd.Context(), a.cfg.WorkerURL()+"/_worker/notifications/test"); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Test notification sent.")
			return nil
		}),
	})

	return cmd
}
