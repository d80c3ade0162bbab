package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/kernelfinder/internal/finder"
	"github.com/steveyegge/kernelfinder/internal/types"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every discoverable kernel",
	Long: `Wait for all finders to finish their initial scan, then list their kernels
in registration order: local kernelspecs, Jupyter servers, contributed files.
The same kernel surfaced by two finders is listed twice.

Examples:
  kf list
  kf list --resource file:///home/me/analysis.ipynb
  kf list --min-version 3.11 --json
  kf list --debuggable`,
	RunE: func(cmd *cobra.Command, args []string) error {
		resource, _ := cmd.Flags().GetString("resource")
		minVersion, _ := cmd.Flags().GetString("min-version")
		asJSON, _ := cmd.Flags().GetBool("json")
		debuggable, _ := cmd.Flags().GetBool("debuggable")

		if minVersion != "" && types.CanonicalVersion(minVersion) == "" {
			return fmt.Errorf("invalid --min-version %q", minVersion)
		}

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

		var kernels []types.KernelConnectionMetadata
		var missing []error
		if debuggable {
			kernels, missing, err = session.ListDebuggable(ctx, resource)
		} else {
			kernels, err = session.ListKernels(ctx, resource)
		}
		if err != nil {
			if hint := failurePolicyHint(err, regCfg.FailurePolicy); hint != "" {
				fmt.Fprintln(os.Stderr, color.YellowString("hint:"), hint)
			}
			return err
		}
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "Listing cancelled")
			return nil
		}

		kernels = filterByVersion(kernels, minVersion)

		if asJSON {
			return writeKernelsJSON(os.Stdout, kernels)
		}
		printKernels(os.Stdout, kernels, session.Registry())
		for _, e := range missing {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.YellowString("skipped:"), e)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringP("resource", "r", "", "Notebook URI to scope the listing to")
	listCmd.Flags().String("min-version", "", "Only kernels whose interpreter is at least this version")
	listCmd.Flags().Bool("json", false, "Print kernels as JSON")
	listCmd.Flags().Bool("debuggable", false, "Only kernels with debugger support")
	rootCmd.AddCommand(listCmd)
}

// filterByVersion keeps kernels whose interpreter satisfies minVersion,
// preserving order. An empty minVersion keeps everything.
func filterByVersion(kernels []types.KernelConnectionMetadata, minVersion string) []types.KernelConnectionMetadata {
	if minVersion == "" {
		return kernels
	}
	out := make([]types.KernelConnectionMetadata, 0, len(kernels))
	for _, k := range kernels {
		if types.AtLeastVersion(k, minVersion) {
			out = append(out, k)
		}
	}
	return out
}

func writeKernelsJSON(w io.Writer, kernels []types.KernelConnectionMetadata) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if kernels == nil {
		kernels = []types.KernelConnectionMetadata{}
	}
	return enc.Encode(kernels)
}

// finderLookup is the part of the registry printKernels needs.
type finderLookup interface {
	GetFinderForConnection(kernel types.KernelConnectionMetadata) (finder.Info, bool)
}

func printKernels(w io.Writer, kernels []types.KernelConnectionMetadata, lookup finderLookup) {
	if len(kernels) == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Fprintf(w, "\n%s No kernels found\n\n", yellow("✨"))
		return
	}

	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(w, "\n%s (%d)\n\n", bold("Kernels"), len(kernels))
	for _, k := range kernels {
		source := ""
		if lookup != nil {
			if info, ok := lookup.GetFinderForConnection(k); ok {
				source = info.DisplayName()
			}
		}
		fmt.Fprintln(w, formatKernelLine(k, source))
	}
	fmt.Fprintln(w)
}

// formatKernelLine renders one kernel as "  name  [language, version]  id  (source)".
func formatKernelLine(k types.KernelConnectionMetadata, source string) string {
	green := color.New(color.FgGreen).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	name := k.DisplayName
	if name == "" {
		name = k.ID
	}

	var details []string
	if k.Language != "" {
		details = append(details, k.Language)
	}
	if k.Interpreter != nil && k.Interpreter.Version != "" {
		details = append(details, k.Interpreter.Version)
	}
	if k.DebuggerSupported {
		details = append(details, "debug")
	}

	line := "  " + green(name)
	if len(details) > 0 {
		line += " [" + strings.Join(details, ", ") + "]"
	}
	line += "  " + gray(k.ID)
	if source != "" {
		line += "  (" + source + ")"
	}
	return line
}
