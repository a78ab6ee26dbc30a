package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSystemCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Inspect the server",
	}
	cmd.AddCommand(
		newSystemHealthCmd(opts),
		newSystemStatusCmd(opts),
		newSystemSettingsCmd(opts),
		newSystemLogsCmd(opts),
	)
	return cmd
}

func newSystemHealthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			if err := c.System.Health(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func newSystemStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show uptime and entity counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			status, err := c.System.Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "up %ds\n", status.UptimeSeconds)
			for name, count := range status.Counts {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", name, count)
			}
			return nil
		},
	}
}

func newSystemSettingsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Show server settings (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			settings, err := c.System.Settings(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(settings)
		},
	}
}

func newSystemLogsCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent request logs (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.newClient()
			if err != nil {
				return err
			}
			lines, err := c.System.Logs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %d %s\n",
					line.Time.Format("15:04:05"), line.Method, line.Path, line.Status, line.Duration)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max lines")
	return cmd
}
