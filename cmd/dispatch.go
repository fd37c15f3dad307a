package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/darkstore/app"
	"github.com/kilianp07/darkstore/core/batch"
	"github.com/kilianp07/darkstore/core/control"
)

var (
	batchMode string
	resetWhat string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write demo pickers, agents and orders to the store",
	RunE:  runSeed,
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run one delivery batching pass",
	RunE:  runBatch,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Release pickers and/or agents and revert their orders",
	RunE:  runReset,
}

func init() {
	batchCmd.Flags().StringVar(&batchMode, "mode", "", "greedy or partition (defaults to dispatch.mode)")
	resetCmd.Flags().StringVar(&resetWhat, "what", "all", "pickers, deliveries or all")
	rootCmd.AddCommand(seedCmd, batchCmd, resetCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, cfg, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	res, err := app.Seed(ctx, svc.Repo, cfg.Roster, cfg.Dispatch.DepotPoint())
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), control.Result{
		Success: true,
		Message: fmt.Sprintf("seeded %d pickers, %d agents, %d orders", res.Pickers, res.Agents, res.Orders),
		Data:    res,
	})
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, cfg, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	mode := cfg.Dispatch.BatchMode()
	if batchMode != "" {
		if mode, err = batch.ParseMode(batchMode); err != nil {
			return err
		}
	}
	return printResult(cmd.OutOrStdout(), svc.Controller.BatchDeliveries(ctx, mode, cfg.Dispatch.Params()))
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, _, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	switch resetWhat {
	case "pickers":
		return printResult(cmd.OutOrStdout(), svc.Controller.ResetPickers(ctx))
	case "deliveries":
		return printResult(cmd.OutOrStdout(), svc.Controller.ResetDeliveries(ctx))
	case "all":
		if err := printResult(cmd.OutOrStdout(), svc.Controller.ResetPickers(ctx)); err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), svc.Controller.ResetDeliveries(ctx))
	default:
		return fmt.Errorf("unknown reset target %q", resetWhat)
	}
}
