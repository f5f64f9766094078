package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/mvvm"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of mvvm",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mvvm version %s\n", strings.TrimSpace(mvvm.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
