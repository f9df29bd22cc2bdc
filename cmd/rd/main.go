package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"reminderdesk/internal/app"
	"reminderdesk/internal/domain"
	"reminderdesk/internal/engine/auth"
)

var rootCmd = &cobra.Command{
	Use:   "rd",
	Short: "Reminderdesk CLI",
	Long: `Reminderdesk tracks role-shared reminders through approval.
- Reminder: a dated item with priority and optional alert time, shared with roles and emails.
- Lifecycle: pending -> approved | rejected; approve and reject are role-gated.
- Viewer: who you act as, set with --role and --email (or REMINDERDESK_ROLE / REMINDERDESK_EMAIL).
- Alerts: reminders whose alert instant falls in the window fire once per session; snooze re-arms them.
- Event log: every change is recorded, view with 'rd log tail'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("REMINDERDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.String("config", "", "config file (default <workspace>/reminderdesk.yml)")
	flags.String("role", "", "acting role: Admin, CEO, CTO or HR")
	flags.String("email", "", "acting email")
	flags.Bool("json", false, "output JSON")
	flags.String("log-level", "warn", "log level")
	flags.String("log-format", "console", "log format: console or json")
	flags.String("jwt-secret", "", "HS256 secret for serve and token (overrides auth.jwt_secret)")
	for _, name := range []string{"workspace", "config", "role", "email", "json", "log-level", "log-format", "jwt-secret"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(reminderCmd())
	rootCmd.AddCommand(alertsCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(notificationsCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(tokenCmd())
}

func openOptions() app.Options {
	return app.Options{
		Workspace:  viper.GetString("workspace"),
		ConfigPath: viper.GetString("config"),
		LogLevel:   viper.GetString("log-level"),
		LogFormat:  viper.GetString("log-format"),
	}
}

func withWorkspace(ctx context.Context, fn func(context.Context, *app.Workspace) error) error {
	ws, err := app.Open(ctx, openOptions())
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws)
}

// actingViewer resolves --role/--email and checks perm plus the directory
// status of the email.
func actingViewer(ctx context.Context, ws *app.Workspace, perm string) (domain.Viewer, error) {
	raw := strings.TrimSpace(viper.GetString("role"))
	if raw == "" {
		return domain.Viewer{}, fmt.Errorf("--role required (or REMINDERDESK_ROLE)")
	}
	role, err := domain.ParseRole(raw)
	if err != nil {
		return domain.Viewer{}, err
	}
	v := domain.Viewer{Role: role, Email: domain.NormalizeEmail(viper.GetString("email"))}
	if perm != "" {
		if err := (auth.Service{Config: ws.Config, Repo: ws.Engine.Repo}).Require(v, perm); err != nil {
			return domain.Viewer{}, err
		}
	}
	if err := ws.Engine.CheckViewerActive(ctx, v); err != nil {
		return domain.Viewer{}, err
	}
	return v, nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func splitCSV(raw []string) []string {
	var out []string
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
