package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "List kernels and re-list whenever a finder reports a change",
	Long: `List kernels, then re-list each time a finder reports a change, until
interrupted. Registry events are recorded to the history database unless
KF_HISTORY_ENABLED=false.

A Jupyter server that is unreachable when watch starts stays failed for the
whole session even if it comes back later: its later updates still trigger a
re-list, and under the default KF_FAILURE_POLICY=fail_fast every such listing
fails. Run with KF_FAILURE_POLICY=isolate to keep listing the other finders.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resource, _ := cmd.Flags().GetString("resource")
		debounce, _ := cmd.Flags().GetDuration("debounce")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		regCfg, err := loadRegistryConfig(true)
		if err != nil {
			return err
		}
		session, err := openSession(ctx, regCfg)
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()

		changed := make(chan struct{}, 1)
		sub := session.Registry().OnDidChangeKernels(func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		defer sub.Dispose()

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("\n%s Watching for kernel changes (Ctrl+C to stop)...\n", cyan("👁️"))

		relist := func() {
			kernels, err := session.ListKernels(ctx, resource)
			if err != nil {
				fmt.Fprintf(os.Stderr, "\nError listing kernels: %v\n", err)
				if hint := failurePolicyHint(err, regCfg.FailurePolicy); hint != "" {
					fmt.Fprintln(os.Stderr, color.YellowString("hint:"), hint)
				}
				return
			}
			if ctx.Err() != nil {
				return
			}
			fmt.Printf("\n%s\n", color.New(color.FgHiBlack).Sprint(time.Now().Format("15:04:05")))
			printKernels(os.Stdout, kernels, session.Registry())
		}
		relist()

		// Bursts of change notifications collapse into one listing.
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				fmt.Println("\nStopped watching")
				return nil
			case <-changed:
				logger.Debug("Kernel change notification")
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				relist()
				logger.Debug("Re-listed kernels", zap.Int("finders", len(session.Registry().Registered())))
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringP("resource", "r", "", "Notebook URI to scope the listing to")
	watchCmd.Flags().Duration("debounce", 500*time.Millisecond, "Quiet period before re-listing after a change")
	rootCmd.AddCommand(watchCmd)
}
