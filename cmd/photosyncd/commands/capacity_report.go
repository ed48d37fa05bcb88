package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/photosync/backend/internal/cli/output"
	"github.com/photosync/backend/internal/workers"
)

var capacityReportRefresh bool

var capacityReportCmd = &cobra.Command{
	Use:   "capacity-report",
	Short: "Print the current capacity report as a table",
	Long: `Render the capacity report (free/total disk space and per-tier signup
headroom) computed by the capacity worker as a table, for operators who
want a quick read without curling GET /api/capacity.

By default this reads the last report the scheduler or "photosyncd worker
capacity" wrote to disk. Pass --refresh to recompute it first.`,
	RunE: runCapacityReport,
}

func init() {
	capacityReportCmd.Flags().BoolVar(&capacityReportRefresh, "refresh", false, "recompute the report before printing it")
}

func runCapacityReport(cmd *cobra.Command, args []string) error {
	a, err := bootWorkerApp()
	if err != nil {
		return err
	}

	if capacityReportRefresh {
		if err := a.scheduler.RunOnce("capacity"); err != nil {
			return fmt.Errorf("refresh capacity report: %w", err)
		}
	}

	report, err := workers.ReadCapacityReport(a.layout.CapacityJSONPath)
	if err != nil {
		return fmt.Errorf("read capacity report: %w (run with --refresh if one hasn't been written yet)", err)
	}

	fmt.Printf("Server free space:  %s\n", formatBytes(report.FreeBytes))
	fmt.Printf("Server total space: %s\n", formatBytes(report.TotalBytes))
	fmt.Println()

	table := output.NewTableData("Plan (GB)", "Active Accounts", "Allocated", "Accepting Signups")
	for _, t := range report.Tiers {
		table.AddRow(
			strconv.Itoa(t.PlanGB),
			strconv.Itoa(t.ActiveAccounts),
			formatBytes(t.AllocatedBytes),
			strconv.FormatBool(t.CanCreate),
		)
	}

	return output.PrintTable(os.Stdout, table)
}

func formatBytes(n int64) string {
	const unit = 1000
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "kMGTPE"[exp])
}
