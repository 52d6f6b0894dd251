package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"buildwatch/internal/daemonctl"
	"buildwatch/internal/ipc"
)

func newPipelineCommand(ctx *commandContext) *cobra.Command {
	pipelineCmd := &cobra.Command{
		Use:     "pipeline",
		Aliases: []string{"pipelines"},
		Short:   "Manage watched pipelines",
	}
	pipelineCmd.AddCommand(newPipelineListCommand(ctx))
	pipelineCmd.AddCommand(newPipelineAddCommand(ctx))
	pipelineCmd.AddCommand(newPipelineRemoveCommand(ctx))
	return pipelineCmd
}

func newPipelineListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List watched pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, ipc.PipelineListResponse{Pipelines: snap.Status.Pipelines})
			}
			r := newRenderer(cmd.OutOrStdout(), cfg.Display.StatusColor)
			if snap.Offline {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon not running; showing last saved status")
			}
			r.pipelineTable(snap.Status.Pipelines)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print pipelines as JSON")
	return cmd
}

func newPipelineAddCommand(ctx *commandContext) *cobra.Command {
	var req ipc.PipelineAddRequest
	cmd := &cobra.Command{
		Use:   "add <project>",
		Short: "Start watching a pipeline",
		Long: `Start watching a pipeline.

For CCTray feeds pass the feed URL and the project name as it appears in the feed:

  buildwatch pipeline add --url https://ci.example.com/cc.xml web-app

For GitHub Actions pass owner/repo/workflow-file, optionally with @branch:

  buildwatch pipeline add --kind github acme/api/ci.yml@main`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Project = strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PipelineAdd(req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (%s)\n", resp.Pipeline.Name, resp.Pipeline.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Kind, "kind", "cctray", "Server kind: cctray or github")
	cmd.Flags().StringVar(&req.URL, "url", "", "Feed URL (cctray) or API URL override (github)")
	cmd.Flags().StringVar(&req.Name, "name", "", "Display name (derived from the project when empty)")
	cmd.Flags().StringVar(&req.User, "user", "", "Basic auth user for the feed")
	cmd.Flags().StringVar(&req.Token, "token", "", "Basic auth password or API token")
	return cmd
}

func newPipelineRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Stop watching a pipeline",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.PipelineRemove(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
				return nil
			})
		},
	}
}

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [id]",
		Short: "Fetch pipeline status now",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = strings.TrimSpace(args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Refresh(id)
				if err != nil {
					return err
				}
				r := newRenderer(cmd.OutOrStdout(), ctx.configValue().Display.StatusColor)
				r.pipelineTable(resp.Pipelines)
				if len(resp.Errors) == 0 {
					return nil
				}
				for _, msg := range resp.Errors {
					fmt.Fprintln(cmd.ErrOrStderr(), "error:", msg)
				}
				return errors.New("some pipelines could not be fetched")
			})
		},
	}
}
