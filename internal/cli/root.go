// Package cli implements the faceattr command line tool
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smegmarip/stash-face-attributes-plugin/internal/analysis"
)

// Version is the application version.
const Version = "0.1.0"

// NewRootCommand builds the command tree around the given backend factory
func NewRootCommand(factory analysis.Factory) *cobra.Command {
	root := &cobra.Command{
		Use:          "faceattr",
		Short:        "Estimate age, gender and expression for faces in images",
		Version:      Version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	root.AddCommand(newAnalyzeCommand(factory))
	return root
}

// Execute runs the CLI until completion or Ctrl+C
func Execute(factory analysis.Factory) {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand(factory).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
