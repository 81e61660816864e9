package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tenchu0314/kabu-predictor/internal/scheduler"
	"github.com/tenchu0314/kabu-predictor/internal/scheduler/jobs"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the scheduled pipeline",
	Long: `Manages the scheduled workflows.

Registered jobs:
  daily-ranking   - quote refresh and ranking report before the open
  weekly-training - full model retraining on the weekend

Subcommands:
  start  - run the scheduler daemon
  run    - execute one job immediately
  status - print execution statistics

Example:
  go run ./cmd/kabu schedule start
  go run ./cmd/kabu schedule run daily-ranking`,
}

var scheduleStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the scheduler daemon",
	RunE:  runScheduleStart,
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run [job]",
	Short: "Execute one job immediately",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleRun,
}

var scheduleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print execution statistics",
	RunE:  runScheduleStatus,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleStartCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
	scheduleCmd.AddCommand(scheduleStatusCmd)
}

func initScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.log)
	if err := sched.Register(jobs.NewDailyRanking(a.pipeline, a.cfg.DailySchedule)); err != nil {
		return nil, err
	}
	if err := sched.Register(jobs.NewWeeklyTraining(a.pipeline, a.cfg.WeeklySchedule)); err != nil {
		return nil, err
	}
	return sched, nil
}

func runScheduleStart(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched.Start()
	fmt.Println("scheduler running, press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func runScheduleRun(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	return sched.RunNow(cmd.Context(), args[0])
}

func runScheduleStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := initScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	stats := sched.Stats()
	if len(stats) == 0 {
		fmt.Println("no executions recorded in this process")
		return nil
	}
	for name, st := range stats {
		fmt.Printf("%s: runs=%d failures=%d last=%s\n",
			name, st.Runs, st.Failures, st.LastRun.Format("2006-01-02 15:04:05"))
		if st.LastError != "" {
			fmt.Printf("  last error: %s\n", st.LastError)
		}
	}
	return nil
}
