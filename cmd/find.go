package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pathkit/pathkit/filesystem"
)

var findArgs struct {
	maxDepth int
	first    bool
}

var findCmd = &cobra.Command{
	Use:   "find <directory> <pattern>",
	Short: "Print every entry below a directory matching a glob pattern",
	Args:  cobra.ExactArgs(2),
	RunE:  findCmdRun,
}

func init() {
	findCmd.Flags().IntVar(&findArgs.maxDepth, "max-depth", filesystem.Unbounded, "number of directory levels to search, negative for all")
	findCmd.Flags().BoolVar(&findArgs.first, "first", false, "only print the first direct child matching the pattern")
}

func findCmdRun(cmd *cobra.Command, args []string) error {
	root, pattern := args[0], args[1]
	out := cmd.OutOrStdout()
	if findArgs.first {
		p, err := filesystem.FindByGlob(root, pattern)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, p)
		return nil
	}

	if err := filesystem.ValidatePattern(pattern); err != nil {
		return err
	}
	matches, err := filesystem.Filter(root, func(p string) bool {
		if p == root {
			return false
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return false
		}
		ok, _ := filesystem.MatchesGlob(rel, pattern)
		return ok
	}, findArgs.maxDepth)
	if err != nil {
		return err
	}
	for _, p := range matches {
		fmt.Fprintln(out, p)
	}
	return nil
}
