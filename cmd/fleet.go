package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Delivery agent commands",
}

var agentsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List delivery agents",
	RunE:  runAgentsLs,
}

var pickersCmd = &cobra.Command{
	Use:   "pickers",
	Short: "Picker commands",
}

var pickersLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List pickers",
	RunE:  runPickersLs,
}

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Print the live tracking snapshot",
	RunE:  runTrack,
}

func init() {
	agentsCmd.AddCommand(agentsLsCmd)
	pickersCmd.AddCommand(pickersLsCmd)
	rootCmd.AddCommand(agentsCmd, pickersCmd, trackCmd)
}

func runAgentsLs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, _, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	agents, err := svc.Repo.Agents(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tORDERS\tDELIVERED")
	for _, a := range agents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", a.ID, a.Name, a.Status, len(a.AssignedOrders), a.CompletedOrders)
	}
	return w.Flush()
}

func runPickersLs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, _, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	pickers, err := svc.Repo.Pickers(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tACTIVE\tORDER\tPROGRESS")
	for _, p := range pickers {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%d%%\n", p.ID, p.Name, p.Active, p.OrderID, p.Progress)
	}
	return w.Flush()
}

func runTrack(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, _, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return printResult(cmd.OutOrStdout(), svc.Controller.GetLiveTracking(ctx))
}
