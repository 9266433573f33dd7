package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/zonectl/internal/cluster"
	"github.com/dreamware/zonectl/internal/initializer"
	"github.com/dreamware/zonectl/internal/mongoadmin"
)

const defaultCoordinator = "http://localhost:8080"

// newAdmin picks the admin client for addr: MongoDB connection strings go
// to a mongos, anything else to a zonectl coordinator over HTTP. The
// returned close function is never nil.
func newAdmin(ctx context.Context, addr string, logger *zap.Logger) (initializer.Admin, func(), error) {
	if mongoadmin.IsMongoURI(addr) {
		admin, err := mongoadmin.Connect(ctx, addr, logger.Named("mongo"))
		if err != nil {
			return nil, func() {}, err
		}
		return admin, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = admin.Close(closeCtx)
		}, nil
	}
	return cluster.NewClient(addr), func() {}, nil
}

func (c *cli) newApplyCmd() *cobra.Command {
	var (
		configPath  string
		coordinator string
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a topology file to the cluster",
		Long: `Apply registers every shard, tags each shard with its zone, enables sharding
on the database, shards the collection and assigns the zone ranges.

The first failing step aborts the run; its name and cause are printed and
zonectl exits non-zero. Fix the cause and run apply again.

The coordinator is either a zonectl coordinator (http://host:port) or a
MongoDB mongos (mongodb://host:port).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadTopology(configPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			plan := initializer.Plan(cfg)
			admin, closeAdmin, err := newAdmin(ctx, coordinator, c.logger)
			if err != nil {
				// Connecting is the first contact with the cluster, so the
				// failure belongs to the first step.
				return &initializer.StepError{Op: plan[0], Index: 0, Err: err}
			}
			defer closeAdmin()

			runner := initializer.NewRunner(admin, initializer.WithLogger(c.logger))
			res, err := runner.Run(ctx, plan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d operations to %s (run %s)\n",
				len(res.Completed), coordinator, res.RunID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the topology YAML file")
	cmd.Flags().StringVar(&coordinator, "coordinator", envOr("ZONECTL_COORDINATOR", defaultCoordinator),
		"coordinator address: http://host:port or mongodb://host:port")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the whole run after this long (0 waits forever)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
