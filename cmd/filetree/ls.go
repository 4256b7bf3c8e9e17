package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/justyntemme/filetree/internal/fs"
)

func newLsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ls <dir>",
		Short: "List one directory the way the tree sees it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(dir)
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}
			return writeListing(cmd.OutOrStdout(), fs.List(dir, cfg.FSOptions()))
		},
	}
}

func writeListing(out io.Writer, entries []fs.Entry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(w, "d\t-\t%s/\n", e.Name)
			continue
		}
		fmt.Fprintf(w, "f\t%s\t%s\n", humanize.Bytes(uint64(e.Size)), e.Name)
	}
	return w.Flush()
}
