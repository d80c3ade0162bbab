package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/kernelfinder/internal/types"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <kernel-id>",
	Short: "Show one kernel and the finder that listed it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resource, _ := cmd.Flags().GetString("resource")

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

		kernel, info, err := session.FindKernel(ctx, resource, args[0])
		if err != nil {
			return err
		}

		bold := color.New(color.Bold).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n", bold(kernel.DisplayName))
		printField("id", kernel.ID)
		printField("kind", string(kernel.Kind))
		printField("language", kernel.Language)
		if kernel.Interpreter != nil {
			printField("interpreter", kernel.Interpreter.URI)
			printField("version", kernel.Interpreter.Version)
		}
		printField("kernelspec", kernel.KernelSpecPath)
		printField("server", kernel.BaseURL)
		printField("finder", fmt.Sprintf("%s %s", info.DisplayName(), gray("("+info.ID()+")")))

		var kerr *types.KernelError
		if err := types.RequireDebugger(kernel); errors.As(err, &kerr) {
			printField("debugger", color.YellowString("%s", kerr.Message))
		} else {
			printField("debugger", color.GreenString("supported"))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringP("resource", "r", "", "Notebook URI to scope the listing to")
	rootCmd.AddCommand(inspectCmd)
}

func printField(name, value string) {
	if value == "" {
		return
	}
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Printf("  %s %s\n", gray(fmt.Sprintf("%-12s", name+":")), value)
}
