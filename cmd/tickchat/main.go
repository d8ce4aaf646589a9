package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "tickchat",
		Short:   "Digital Tick AI chat backend",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newUsageCmd(),
		newAuditCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
