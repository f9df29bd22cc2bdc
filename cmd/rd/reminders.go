package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"reminderdesk/internal/app"
	"reminderdesk/internal/config"
	"reminderdesk/internal/domain"
	"reminderdesk/internal/engine"
	"reminderdesk/internal/visibility"
)

func reminderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reminder",
		Aliases: []string{"r"},
		Short:   "Create, list and resolve reminders",
	}
	cmd.AddCommand(reminderCreateCmd())
	cmd.AddCommand(reminderListCmd())
	cmd.AddCommand(reminderShowCmd())
	cmd.AddCommand(reminderActionCmd("approve", "Approve a pending reminder", config.PermReminderApprove,
		func(e engine.Engine) reminderAction { return e.Approve }))
	cmd.AddCommand(reminderRejectCmd())
	cmd.AddCommand(reminderActionCmd("star", "Toggle the shared star", config.PermReminderUpdate,
		func(e engine.Engine) reminderAction { return e.ToggleStar }))
	cmd.AddCommand(reminderActionCmd("dismiss", "Dismiss a reminder so it stops alerting", config.PermReminderUpdate,
		func(e engine.Engine) reminderAction { return e.Dismiss }))
	cmd.AddCommand(reminderSnoozeCmd())
	return cmd
}

func reminderCreateCmd() *cobra.Command {
	var in engine.CreateInput
	var roles, emails []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a reminder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				v, err := actingViewer(ctx, ws, config.PermReminderCreate)
				if err != nil {
					return err
				}
				in.AssignedToRoles = splitCSV(roles)
				in.AssignedToEmails = splitCSV(emails)
				rem, err := ws.Engine.Create(ctx, in, v)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rem)
				}
				fmt.Printf("Created reminder %s (%s, due %s)\n", rem.ID, rem.Priority, rem.DueDate)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "title")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&in.Priority, "priority", "", "Normal, High or Very High")
	cmd.Flags().StringVar(&in.DueDate, "due", "", "due date YYYY-MM-DD")
	cmd.Flags().StringVar(&in.DueTime, "due-time", "", "due time HH:MM")
	cmd.Flags().StringVar(&in.AlertTime, "alert", "", "alert time HH:MM on the due date")
	cmd.Flags().StringSliceVar(&roles, "to-role", nil, "assigned role (repeatable or comma-separated)")
	cmd.Flags().StringSliceVar(&emails, "to-email", nil, "assigned email (repeatable or comma-separated)")
	cmd.Flags().BoolVar(&in.AssignRoleMembers, "role-members", false, "also address active users holding the assigned roles")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func reminderListCmd() *cobra.Command {
	var scope, status, date, sortBy string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reminders visible to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				v, err := actingViewer(ctx, ws, config.PermReminderRead)
				if err != nil {
					return err
				}
				opts := engine.ListOptions{DueDate: date, Sort: sortBy, Limit: limit}
				if opts.Scope, err = visibility.ParseScope(scope); err != nil {
					return err
				}
				if status != "" {
					if opts.Status, err = domain.ParseStatus(status); err != nil {
						return err
					}
				}
				items, err := ws.Engine.ListForViewer(ctx, v, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Title", "Priority", "Due", "Alert", "Status", "From", "Star"})
				for _, item := range items {
					tw.AppendRow(table.Row{item.ID, item.Title, item.Priority, dueLabel(item.Reminder),
						item.AlertTime, statusLabel(item), item.CreatedBy, starLabel(item.Starred)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "all", "all, my, shared_with_me or shared_by_me")
	cmd.Flags().StringVar(&status, "status", "", "pending, approved or rejected")
	cmd.Flags().StringVar(&date, "date", "", "due date YYYY-MM-DD")
	cmd.Flags().StringVar(&sortBy, "sort", engine.SortPriority, "priority or newest")
	cmd.Flags().IntVar(&limit, "limit", 0, "max rows")
	return cmd
}

func reminderShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				v, err := actingViewer(ctx, ws, config.PermReminderRead)
				if err != nil {
					return err
				}
				view, err := ws.Engine.GetForViewer(ctx, args[0], v)
				if err != nil {
					return err
				}
				return printJSONOrTable(view)
			})
		},
	}
}

type reminderAction func(ctx context.Context, id string, v domain.Viewer) (domain.Reminder, error)

// reminderActionCmd builds an id-only lifecycle command. The reminder must be
// visible to the acting viewer.
func reminderActionCmd(use, short, perm string, pick func(engine.Engine) reminderAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				v, err := actingViewer(ctx, ws, perm)
				if err != nil {
					return err
				}
				if _, err := ws.Engine.GetForViewer(ctx, args[0], v); err != nil {
					return err
				}
				rem, err := pick(ws.Engine)(ctx, args[0], v)
				if err != nil {
					return err
				}
				return printReminderResult(use, rem)
			})
		},
	}
}

func reminderRejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				v, err := actingViewer(ctx, ws, config.PermReminderReject)
				if err != nil {
					return err
				}
				if _, err := ws.Engine.GetForViewer(ctx, args[0], v); err != nil {
					return err
				}
				rem, err := ws.Engine.Reject(ctx, args[0], v, reason)
				if err != nil {
					return err
				}
				return printReminderResult("reject", rem)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason")
	return cmd
}

func reminderSnoozeCmd() *cobra.Command {
	var minutes int
	cmd := &cobra.Command{
		Use:   "snooze <id>",
		Short: "Move the alert to now plus minutes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				v, err := actingViewer(ctx, ws, config.PermReminderUpdate)
				if err != nil {
					return err
				}
				if _, err := ws.Engine.GetForViewer(ctx, args[0], v); err != nil {
					return err
				}
				res, err := ws.Engine.Snooze(ctx, args[0], minutes, v)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Snoozed %s until %s %s\n", res.Reminder.ID, res.Reminder.DueDate, res.Reminder.AlertTime)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&minutes, "minutes", "m", 15, "minutes to snooze")
	return cmd
}

func printReminderResult(verb string, rem domain.Reminder) error {
	if viper.GetBool("json") {
		return printJSON(rem)
	}
	switch verb {
	case "star":
		if rem.Starred {
			fmt.Printf("Starred %s\n", rem.ID)
		} else {
			fmt.Printf("Unstarred %s\n", rem.ID)
		}
	case "dismiss":
		fmt.Printf("Dismissed %s\n", rem.ID)
	default:
		fmt.Printf("%s is now %s\n", rem.ID, rem.Status)
	}
	return nil
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Counts over reminders you created",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				v, err := actingViewer(ctx, ws, config.PermReminderRead)
				if err != nil {
					return err
				}
				st, err := ws.Engine.Stats(ctx, v)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(st)
				}
				tw := newTable(table.Row{"Total", "Urgent", "Pending", "Approved", "Rejected", "Starred"})
				tw.AppendRow(table.Row{st.Total, st.Urgent, st.Pending, st.Approved, st.Rejected, st.Starred})
				tw.Render()
				return nil
			})
		},
	}
}

func notificationsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Status updates on reminders you created",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				v, err := actingViewer(ctx, ws, config.PermReminderRead)
				if err != nil {
					return err
				}
				items, err := ws.Engine.StatusUpdates(ctx, v, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				if len(items) == 0 {
					fmt.Println("No updates.")
					return nil
				}
				tw := newTable(table.Row{"Reminder", "Update", "When"})
				for _, u := range items {
					tw.AppendRow(table.Row{u.Title, u.Message, u.Ago})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max updates")
	return cmd
}

func dueLabel(r domain.Reminder) string {
	if r.DueTime == "" {
		return r.DueDate
	}
	return r.DueDate + " " + r.DueTime
}

func statusLabel(v engine.ReminderView) string {
	if !v.ShowStatusBadge {
		return ""
	}
	return string(v.Status)
}

func starLabel(starred bool) string {
	if starred {
		return "*"
	}
	return ""
}
