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
	"reminderdesk/internal/repo"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the users directory",
	}
	cmd.AddCommand(userAddCmd())
	cmd.AddCommand(userListCmd())
	cmd.AddCommand(userEditCmd())
	cmd.AddCommand(userRemoveCmd())
	cmd.AddCommand(userStatusCmd("activate", domain.UserActive))
	cmd.AddCommand(userStatusCmd("deactivate", domain.UserInactive))
	cmd.AddCommand(userMembersCmd())
	cmd.AddCommand(userKeyCmd())
	return cmd
}

func userAddCmd() *cobra.Command {
	var in engine.UserInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a directory user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				v, err := actingViewer(ctx, ws, config.PermUserManage)
				if err != nil {
					return err
				}
				u, err := ws.Engine.AddUser(ctx, in, v)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(u)
				}
				fmt.Printf("Added %s <%s> as %s\n", u.FullName, u.Email, u.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&in.Email, "email-address", "", "email")
	cmd.Flags().StringVar(&in.Role, "user-role", "", "role: Admin, CEO, CTO or HR")
	cmd.Flags().StringVar(&in.Status, "status", "", "active or inactive")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email-address")
	_ = cmd.MarkFlagRequired("user-role")
	return cmd
}

func userListCmd() *cobra.Command {
	var f repo.UserFilter
	var role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List directory users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if _, err := actingViewer(ctx, ws, config.PermUserRead); err != nil {
					return err
				}
				if role != "" {
					parsed, err := domain.ParseRole(role)
					if err != nil {
						return err
					}
					f.Role = parsed
				}
				users, err := ws.Engine.ListUsers(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := newTable(table.Row{"ID", "Name", "Email", "Role", "Status"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.FullName, u.Email, u.Role, u.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&role, "user-role", "", "role filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	return cmd
}

func userEditCmd() *cobra.Command {
	var in engine.UserInput
	cmd := &cobra.Command{
		Use:   "edit <user-id>",
		Short: "Edit a user's name, email, role or status",
		Long:  "Only the flags you pass change; the rest keep their current value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				v, err := actingViewer(ctx, ws, config.PermUserManage)
				if err != nil {
					return err
				}
				u, err := ws.Engine.UpdateUser(ctx, args[0], in, v)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(u)
				}
				fmt.Printf("Updated %s <%s> (%s, %s)\n", u.FullName, u.Email, u.Role, u.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&in.Email, "email-address", "", "email")
	cmd.Flags().StringVar(&in.Role, "user-role", "", "role: Admin, CEO, CTO or HR")
	cmd.Flags().StringVar(&in.Status, "status", "", "active or inactive")
	return cmd
}

func userRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <user-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a user and its API keys",
		Long:    "Reminders addressed to the user's email are kept.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				v, err := actingViewer(ctx, ws, config.PermUserManage)
				if err != nil {
					return err
				}
				u, err := ws.Engine.DeleteUser(ctx, args[0], v)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(u)
				}
				fmt.Printf("Deleted %s <%s>\n", u.FullName, u.Email)
				return nil
			})
		},
	}
}

func userStatusCmd(use, status string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: fmt.Sprintf("Mark a user %s", status),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				v, err := actingViewer(ctx, ws, config.PermUserManage)
				if err != nil {
					return err
				}
				u, err := ws.Engine.SetUserStatus(ctx, args[0], status, v)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(u)
				}
				fmt.Printf("%s is %s\n", u.Email, u.Status)
				return nil
			})
		},
	}
}

func userMembersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members <role>",
		Short: "Emails of active users holding a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if _, err := actingViewer(ctx, ws, config.PermUserRead); err != nil {
					return err
				}
				role, err := domain.ParseRole(args[0])
				if err != nil {
					return err
				}
				emails, err := ws.Engine.RoleMembers(ctx, role)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(emails)
				}
				for _, email := range emails {
					fmt.Println(email)
				}
				return nil
			})
		},
	}
}

func userKeyCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "key <user-id>",
		Short: "Issue an API key for a user",
		Long:  "The raw key is printed once; only its hash is stored.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if _, err := actingViewer(ctx, ws, config.PermUserManage); err != nil {
					return err
				}
				raw, key, err := ws.Engine.CreateAPIKey(ctx, args[0], name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"key": raw, "id": key.ID, "user_id": key.UserID})
				}
				fmt.Println(raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}
