package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:          "negotiator",
		Short:        "Screen vendors, negotiate with each and recommend the best offer",
		SilenceUsage: true,
	}

	root.AddCommand(runCMD(), scoreCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
