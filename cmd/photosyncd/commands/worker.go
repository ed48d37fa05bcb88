package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run one background maintenance job once and exit",
	Long: `Run a single maintenance worker to completion and exit, for operators who
prefer an externally-timed invocation (systemd timer, cron) over the
ticker-driven scheduler built into "photosyncd serve".

Subcommands:
  capacity    Recompute free-space tiers and write the capacity JSON
  sweep       Purge expired-tenant StealthCloud chunks and manifests
  reconcile   Reconcile the StealthCloud chunk index against disk`,
}

var workerCapacityCmd = &cobra.Command{
	Use:   "capacity",
	Short: "Recompute and write the capacity report",
	RunE:  runWorkerCapacity,
}

var workerSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge expired-tenant StealthCloud data",
	RunE:  runWorkerSweep,
}

var workerReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile the StealthCloud chunk index against disk",
	RunE:  runWorkerReconcile,
}

func init() {
	workerCmd.AddCommand(workerCapacityCmd)
	workerCmd.AddCommand(workerSweepCmd)
	workerCmd.AddCommand(workerReconcileCmd)
}

func runWorkerCapacity(cmd *cobra.Command, args []string) error {
	return runOneshotWorker("capacity")
}

func runWorkerSweep(cmd *cobra.Command, args []string) error {
	return runOneshotWorker("sweeper")
}

func runWorkerReconcile(cmd *cobra.Command, args []string) error {
	return runOneshotWorker("reconciler")
}

func bootWorkerApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return bootstrap(cfg)
}

// runOneshotWorker bootstraps the app and runs a single named job through
// workers.Scheduler.RunOnce, so "photosyncd worker <name>" gets the same
// metrics/logging as the ticker-driven scheduler inside "photosyncd serve".
func runOneshotWorker(name string) error {
	a, err := bootWorkerApp()
	if err != nil {
		return err
	}
	if err := a.scheduler.RunOnce(name); err != nil {
		return fmt.Errorf("worker %s failed: %w", name, err)
	}
	fmt.Printf("worker %s completed successfully\n", name)
	return nil
}
