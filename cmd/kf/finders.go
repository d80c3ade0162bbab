package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

)

var findersCmd = &cobra.Command{
	Use:   "finders",
	Short: "Show registered finders and their readiness",
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		regCfg, err := loadRegistryConfig(false)
		if err != nil {
			return err
		}
		session, err := openSession(ctx, regCfg)
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		registry := session.Registry()
		finders := registry.Finders()
		fmt.Printf("\nFinders (%d), in registration order\n\n", len(finders))

		for _, f := range finders {
			status := green("ready")
			count := ""

			waitCtx, cancel := context.WithTimeout(ctx, timeout)
			err := f.WaitReady(waitCtx)
			cancel()
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				status = yellow("pending")
			case err != nil:
				status = red("failed: " + err.Error())
			default:
				count = fmt.Sprintf("%d kernels", len(f.ListContributedKernels("")))
			}

			fmt.Printf("  %-12s %s  %s\n", f.Kind(), f.DisplayName(), status)
			fmt.Printf("  %-12s %s %s\n", "", gray(f.ID()), gray(count))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	findersCmd.Flags().Duration("timeout", 10*time.Second, "How long to wait for each finder's initial scan")
	rootCmd.AddCommand(findersCmd)
}
