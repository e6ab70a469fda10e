package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func buildRunCmd() *cobra.Command {
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:   "run <workflow-file>",
		Short: "Execute a workflow definition once and print the resulting execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, configPath, debug)
			if err != nil {
				return err
			}
			defer a.shutdown()

			def, err := loadWorkflowDefinition(args[0])
			if err != nil {
				return err
			}
			if err := a.engine.Create(def); err != nil {
				return fmt.Errorf("create workflow: %w", err)
			}

			exec, err := a.engine.Execute(ctx, def.ID)
			if err != nil {
				return fmt.Errorf("execute workflow: %w", err)
			}

			return printJSON(cmd, exec)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "genflow.yaml", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func buildStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the providers, agents, and schedules loaded from configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := buildApp(ctx, configPath, false)
			if err != nil {
				return err
			}
			defer a.shutdown()

			summary := map[string]any{
				"providers": a.providers.Len(),
				"agents":    len(a.cfg.Agents),
				"schedules": len(a.cfg.Schedules),
				"bus_stats": a.bus.Stats(),
			}
			return printJSON(cmd, summary)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "genflow.yaml", "Path to YAML configuration file")
	return cmd
}

func buildValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <workflow-file>",
		Short: "Validate a workflow definition file without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadWorkflowDefinition(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "workflow %q is valid (%d tasks)\n", def.Name, len(def.Tasks))
			return nil
		},
	}
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
