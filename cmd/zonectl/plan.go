package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dreamware/zonectl/internal/initializer"
	"github.com/dreamware/zonectl/internal/topology"
)

// loadTopology reads and validates a topology file. Failures are reported
// with the validation exit code.
func loadTopology(path string) (*topology.Config, error) {
	cfg, err := topology.LoadFile(path)
	if err != nil {
		return nil, &exitError{err: err, code: exitValidation}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &exitError{err: fmt.Errorf("invalid topology %s:\n%w", path, err), code: exitValidation}
	}
	return cfg, nil
}

func (c *cli) newPlanCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the operations apply would issue, in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadTopology(configPath)
			if err != nil {
				return err
			}
			for i, op := range initializer.Plan(cfg) {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. %s\n", i+1, op)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the topology YAML file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func (c *cli) newValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a topology file without contacting the cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadTopology(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d shards, %d zone ranges on %s: ok\n",
				configPath, len(cfg.Shards), len(cfg.Ranges), cfg.Namespace)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the topology YAML file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
