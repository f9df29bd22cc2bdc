package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"reminderdesk/internal/app"
	"reminderdesk/internal/config"
	"reminderdesk/internal/domain"
	"reminderdesk/internal/engine/auth"
	"reminderdesk/internal/notify"
	"reminderdesk/internal/scheduler"
)

func alertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Evaluate due alerts",
		Long:  "Alerts fire once per session for reminders whose alert time falls in the window. Resolved and dismissed reminders never alert.",
	}
	cmd.AddCommand(alertsCheckCmd())
	cmd.AddCommand(alertsWatchCmd())
	return cmd
}

func newPoller(ws *app.Workspace, v domain.Viewer, sink notify.Sink) *scheduler.Poller {
	return &scheduler.Poller{
		Source:          ws.Engine,
		Viewer:          v,
		Evaluator:       ws.Engine.Evaluator(),
		Sink:            sink,
		Logger:          ws.Logger,
		Metrics:         ws.Engine.Metrics,
		Now:             ws.Engine.Now,
		AlertInterval:   ws.Config.AlertInterval(),
		RefreshInterval: ws.Config.RefreshInterval(),
	}
}

// deliverySinks fans out to the configured log, email and webhook sinks.
func deliverySinks(ws *app.Workspace, extra ...notify.Sink) notify.Sink {
	sinks := append(notify.Sinks(ws.Config, notify.LogSink{Logger: ws.Logger}), extra...)
	return notify.Multi{Sinks: sinks, Metrics: ws.Engine.Metrics, Logger: ws.Logger}
}

func alertsCheckCmd() *cobra.Command {
	var deliver bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show reminders due to alert now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				v, err := actingViewer(ctx, ws, config.PermReminderRead)
				if err != nil {
					return err
				}
				var sink notify.Sink
				if deliver {
					sink = deliverySinks(ws)
				}
				p := newPoller(ws, v, sink)
				p.Refresh(ctx)
				alerts := p.Check(ctx)
				if viper.GetBool("json") {
					return printJSON(alerts)
				}
				if len(alerts) == 0 {
					fmt.Println("No due alerts.")
					return nil
				}
				tw := newTable(table.Row{"ID", "Title", "Priority", "Due", "Alert"})
				for _, a := range alerts {
					tw.AppendRow(table.Row{a.Reminder.ID, a.Reminder.Title, a.Reminder.Priority, dueLabel(a.Reminder), a.Reminder.AlertTime})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&deliver, "notify", false, "also deliver through the configured sinks")
	return cmd
}

func alertsWatchCmd() *cobra.Command {
	var minutes int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll and print alerts until interrupted",
		Long: `Poll and print alerts until interrupted.
While watching, type "snooze <id> [minutes]" to move an alert and re-arm it
for this session, or "dismiss <id>" to stop it alerting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withWorkspace(ctx, func(ctx context.Context, ws *app.Workspace) error {
				v, err := actingViewer(ctx, ws, config.PermReminderRead)
				if err != nil {
					return err
				}
				printer := notify.SinkFunc(func(_ context.Context, a notify.Alert) error {
					if viper.GetBool("json") {
						return printJSON(a)
					}
					fmt.Printf("%s  %s  [%s]\n", a.At.Format("15:04"), a.Subject(), a.Reminder.ID)
					return nil
				})
				p := newPoller(ws, v, deliverySinks(ws, printer))
				go watchCommands(ctx, ws, v, p, cmd.InOrStdin(), minutes)
				ws.Logger.Info("watching alerts", zap.String("role", string(v.Role)), zap.String("email", v.Email))
				return p.Run(ctx)
			})
		},
	}
	cmd.Flags().IntVarP(&minutes, "minutes", "m", 15, "default snooze minutes")
	return cmd
}

// watchCommands applies snooze and dismiss lines typed during a watch. A
// snooze re-arms the poller with the written reminder.
func watchCommands(ctx context.Context, ws *app.Workspace, v domain.Viewer, p *scheduler.Poller, in io.Reader, defaultMinutes int) {
	authz := auth.Service{Config: ws.Config, Repo: ws.Engine.Repo}
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		verb, id := strings.ToLower(fields[0]), fields[1]
		err := func() error {
			if err := authz.Require(v, config.PermReminderUpdate); err != nil {
				return err
			}
			if _, err := ws.Engine.GetForViewer(ctx, id, v); err != nil {
				return err
			}
			switch verb {
			case "snooze", "s":
				minutes := defaultMinutes
				if len(fields) > 2 {
					n, err := strconv.Atoi(fields[2])
					if err != nil {
						return fmt.Errorf("minutes must be a number, got %q", fields[2])
					}
					minutes = n
				}
				res, err := ws.Engine.Snooze(ctx, id, minutes, v)
				if err != nil {
					return err
				}
				p.Rearm(res.Reminder)
				fmt.Printf("Snoozed %s until %s %s\n", id, res.Reminder.DueDate, res.Reminder.AlertTime)
			case "dismiss", "d":
				if _, err := ws.Engine.Dismiss(ctx, id, v); err != nil {
					return err
				}
				p.Refresh(ctx)
				fmt.Printf("Dismissed %s\n", id)
			default:
				return fmt.Errorf("unknown command %q: want snooze or dismiss", verb)
			}
			return nil
		}()
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}
