package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systemshift/nodegraph/internal/graph"
)

var dumpType string

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write every node as one JSON snapshot per line",
	RunE:  runDump,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show backend statistics",
	RunE:  runStats,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runMigrate,
}

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every node in the backend",
	RunE:  runReset,
}

func init() {
	dumpCmd.Flags().StringVar(&dumpType, "type", "", "only dump nodes of this type")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm deletion")
}

func runDump(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	enc := json.NewEncoder(cmd.OutOrStdout())
	return rt.store.View(ctx, func(g *graph.Graph) error {
		seq := g.All(ctx)
		if dumpType != "" {
			seq = g.List(ctx, graph.TypeName(dumpType))
		}
		for h, err := range seq {
			if err != nil {
				return err
			}
			snap, err := h.Base().Snapshot(ctx)
			if err != nil {
				return err
			}
			if err := enc.Encode(snap); err != nil {
				return err
			}
		}
		return nil
	})
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	admin, err := rt.admin()
	if err != nil {
		return err
	}
	version, err := admin.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	stats, err := admin.Statistics(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"backend":        rt.cfg.Backend,
		"schema_version": version,
		"statistics":     stats,
	})
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	admin, err := rt.admin()
	if err != nil {
		return err
	}
	if err := admin.Migrate(ctx); err != nil {
		return err
	}
	version, err := admin.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		return errors.New("reset deletes every node; pass --yes to confirm")
	}
	ctx := cmd.Context()
	rt, err := setup(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	admin, err := rt.admin()
	if err != nil {
		return err
	}
	if err := admin.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "graph reset")
	return nil
}
