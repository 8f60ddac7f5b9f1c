package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/pathkit/pathkit/config"
	"github.com/pathkit/pathkit/filesystem"
)

var walkArgs struct {
	maxDepth int
	follow   bool
	limit    int
	children bool
}

var walkCmd = &cobra.Command{
	Use:   "walk <directory>",
	Short: "Print every entry below a directory, depth first",
	Args:  cobra.ExactArgs(1),
	RunE:  walkCmdRun,
}

func init() {
	walkCmd.Flags().IntVar(&walkArgs.maxDepth, "max-depth", filesystem.Unbounded, "number of directory levels to descend, negative for all")
	walkCmd.Flags().BoolVarP(&walkArgs.follow, "follow", "L", false, "follow symbolic links")
	walkCmd.Flags().IntVarP(&walkArgs.limit, "limit", "n", 0, "stop after printing this many entries")
	walkCmd.Flags().BoolVar(&walkArgs.children, "children", false, "only list the direct children of the directory")
}

func walkCmdRun(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if walkArgs.children {
		return listChildren(out, args[0])
	}

	c := config.Get().Walk
	if cmd.Flags().Changed("max-depth") {
		c.MaxDepth = walkArgs.maxDepth
	}
	if cmd.Flags().Changed("follow") {
		c.FollowLinks = walkArgs.follow
	}

	opts := []filesystem.WalkOption{
		filesystem.WithMaxDepth(c.MaxDepth),
		filesystem.WithErrorHandler(func(p string, err error) {
			if filesystem.IsCycleError(err) {
				log.WithField("path", p).WithField("error", err).Warn("not following symbolic link loop")
				return
			}
			log.WithField("path", p).WithField("error", err).Warn("skipping entry")
		}),
	}
	if c.FollowLinks {
		opts = append(opts, filesystem.WithFollowLinks())
	}

	w, err := filesystem.Walk(args[0], opts...)
	if err != nil {
		return err
	}
	var n int
	for p, err := range w.Seq() {
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", w.Depth()), p)
		n++
		if walkArgs.limit > 0 && n >= walkArgs.limit {
			break
		}
	}
	return nil
}

func listChildren(out io.Writer, dir string) error {
	c, err := filesystem.ChildrenOf(dir)
	if err != nil {
		return err
	}
	var n int
	for p, err := range c.Seq() {
		if err != nil {
			return err
		}
		fmt.Fprintln(out, p)
		n++
		if walkArgs.limit > 0 && n >= walkArgs.limit {
			break
		}
	}
	return nil
}
