package cmd

import (
	"path/filepath"
	"slices"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/pathkit/pathkit/config"
	"github.com/pathkit/pathkit/filesystem"
	"github.com/pathkit/pathkit/shutdown"
)

var cleanArgs struct {
	pattern   string
	maxDepth  int
	dirs      bool
	protected []string
	strict    bool
	deferred  bool
}

// deferRegistry returns the registry --defer registers entries with.
var deferRegistry = shutdown.Default

var cleanCmd = &cobra.Command{
	Use:   "clean <directory>",
	Short: "Delete files matching a glob pattern below a directory",
	Long: `Delete every file below the directory whose name matches the glob pattern.

Cleaning is best effort: files that cannot be removed are reported and
skipped. Pass --strict to stop at the first failure instead.`,
	Args: cobra.ExactArgs(1),
	RunE: cleanCmdRun,
}

func init() {
	cleanCmd.Flags().StringVarP(&cleanArgs.pattern, "pattern", "p", filesystem.MatchAll, "glob pattern files must match to be deleted")
	cleanCmd.Flags().IntVar(&cleanArgs.maxDepth, "max-depth", filesystem.Unbounded, "number of directory levels to clean, negative for all")
	cleanCmd.Flags().BoolVar(&cleanArgs.dirs, "delete-directories", false, "also remove directories once they have been emptied")
	cleanCmd.Flags().StringSliceVar(&cleanArgs.protected, "protect", nil, "gitignore style pattern for paths that must not be deleted")
	cleanCmd.Flags().BoolVar(&cleanArgs.strict, "strict", false, "stop at the first file that cannot be deleted")
	cleanCmd.Flags().BoolVar(&cleanArgs.deferred, "defer", false, "register matching entries for deletion when the command exits instead of deleting them now")
}

func cleanCmdRun(cmd *cobra.Command, args []string) error {
	c := cleanConfiguration(cmd)

	root := args[0]
	if cleanArgs.deferred {
		return deferClean(root, c)
	}

	opts := []filesystem.CleanOption{
		filesystem.WithPattern(c.Pattern),
		filesystem.WithCleanDepth(c.MaxDepth),
		filesystem.WithProtected(c.Protected...),
	}
	if c.DeleteDirectories {
		opts = append(opts, filesystem.WithDeleteDirectories())
	}
	if cleanArgs.strict {
		opts = append(opts, filesystem.WithStrict())
	}

	res, err := filesystem.Clean(root, opts...)
	fields := log.Fields{
		"root":      root,
		"pattern":   c.Pattern,
		"deleted":   res.Deleted,
		"failed":    res.Failed,
		"skipped":   res.Skipped,
		"protected": res.Protected,
	}
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		log.WithFields(fields).Warn("cleaned directory, some entries could not be deleted")
		return nil
	}
	log.WithFields(fields).Info("cleaned directory")
	return nil
}

// cleanConfiguration returns the configured clean settings with any flags
// passed on the command line applied on top.
func cleanConfiguration(cmd *cobra.Command) config.CleanConfiguration {
	c := config.Get().Clean
	flags := cmd.Flags()
	if flags.Changed("pattern") {
		c.Pattern = cleanArgs.pattern
	}
	if flags.Changed("max-depth") {
		c.MaxDepth = cleanArgs.maxDepth
	}
	if flags.Changed("delete-directories") {
		c.DeleteDirectories = cleanArgs.dirs
	}
	c.Protected = slices.Concat(c.Protected, cleanArgs.protected)
	return c
}

// deferClean registers every entry a clean would remove with the shutdown
// registry. Directories are visited before their contents, so they are
// registered first and therefore deleted last.
func deferClean(root string, c config.CleanConfiguration) error {
	if err := filesystem.ValidatePattern(c.Pattern); err != nil {
		return err
	}
	w, err := filesystem.Walk(root, filesystem.WithMaxDepth(c.MaxDepth))
	if err != nil {
		return err
	}
	defer w.Close()

	protected := filesystem.NewProtector(c.Protected...)
	reg := deferRegistry()
	var n int
	for w.Next() {
		if w.Depth() == 0 {
			continue
		}
		p := w.Path()
		isDir := w.Attrs().IsDir()
		if protected.Matches(root, p, isDir) {
			continue
		}
		if isDir {
			if !c.DeleteDirectories {
				continue
			}
		} else {
			rel, err := filepath.Rel(root, p)
			if err != nil {
				rel = p
			}
			if ok, _ := filesystem.MatchesGlob(rel, c.Pattern); !ok {
				continue
			}
		}
		if err := reg.Register(p); err != nil {
			return err
		}
		n++
	}
	if err := w.Err(); err != nil {
		return err
	}
	log.WithField("root", root).WithField("registered", n).Info("registered entries for deletion on exit")
	return nil
}
