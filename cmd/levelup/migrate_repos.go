package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/levelup-tools/levelup/pkg/reposvc"
)

var migrateReposCmd = &cobra.Command{
	Use:   "migrate-repos <path>",
	Short: "Reload and rewrite a repos.json in canonical form",
	Long: `migrate-repos opens the given repos.json, parses it through the
normal reposvc load path (failing if the file is not valid JSON), and
writes it back out in the current canonical format. Useful after
hand-editing the file, or after a
repos.json written by an older version of this tool.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		store, err := reposvc.Open(path)
		if err != nil {
			return fmt.Errorf("migrate-repos: %w", err)
		}
		repos := store.List()
		if err := store.Save(); err != nil {
			return fmt.Errorf("migrate-repos: %w", err)
		}
		fmt.Printf("migrate-repos: %d repositories validated and rewritten to %s\n", len(repos), path)
		return nil
	},
}
