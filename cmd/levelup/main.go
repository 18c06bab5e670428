package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "levelup",
	Short:   "Automated C++ micro-refactoring engine",
	Version: version,
	Long: `levelup clones a C++ repository, applies behavior-preserving
refactorings, validates them by comparing compiler output before and
after, and pushes whatever survives validation onto a dedicated branch.

Common Tasks:
  levelup serve                  # start the HTTP API and worker
  levelup migrate-repos <path>   # repair a hand-edited repos.json`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.AddGroup(&cobra.Group{ID: "operate", Title: "Operate Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "maintain", Title: "Maintenance Commands:"})

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")
	rootCmd.SetOut(os.Stderr)

	serveCmd.GroupID = "operate"
	migrateReposCmd.GroupID = "maintain"

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateReposCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
