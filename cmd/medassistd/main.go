package main

import (
	"fmt"
	"os"

	"github.com/HirotoShioi/medical-assistant-ai/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medassistd",
		Short: "Medassist daemon",
		Long:  "Medassist daemon for running the knowledge ingestion and document synthesis API server",
	}

	rootCmd.AddCommand(admin.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
