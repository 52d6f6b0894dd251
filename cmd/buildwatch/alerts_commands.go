package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"buildwatch/internal/ipc"
)

func newAlertsCommand(ctx *commandContext) *cobra.Command {
	alertsCmd := &cobra.Command{
		Use:   "alerts",
		Short: "Mute or unmute build alerts",
	}
	for _, enabled := range []bool{true, false} {
		use, short := "on", "Resume alert delivery"
		if !enabled {
			use, short = "off", "Mute alert delivery until turned back on"
		}
		alertsCmd.AddCommand(&cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return ctx.withClient(func(client *ipc.Client) error {
					resp, err := client.SetAlerts(enabled)
					if err != nil {
						return err
					}
					if resp.Enabled {
						fmt.Fprintln(cmd.OutOrStdout(), "Alerts enabled")
					} else {
						fmt.Fprintln(cmd.OutOrStdout(), "Alerts muted")
					}
					return nil
				})
			},
		})
	}
	return alertsCmd
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				if resp.Message != "" {
					fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				}
				if !resp.Sent {
					return errors.New("notification not sent")
				}
				return nil
			})
		},
	}
}
