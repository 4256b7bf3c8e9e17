package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newOpenCmd(g *globalFlags) *cobra.Command {
	var expand []string
	cmd := &cobra.Command{
		Use:   "open [dir]",
		Short: "Open a folder, expand paths in it and print the tree",
		Long: `Open dir as the tree root, or the last opened folder when dir is omitted
and tree.autoOpenLast is set. Folders expanded in an earlier session are
expanded again; --expand adds more, relative to the root unless absolute.
The resulting expansion state is saved for the next session.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := g.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := s.close(); err == nil {
					err = cerr
				}
			}()

			if len(args) == 1 {
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
				if err := s.openRoot(cmd, dir); err != nil {
					return err
				}
			} else if err := s.startup(cmd); err != nil {
				return err
			}

			root := s.mgr.RootPath()
			for _, p := range expand {
				if !filepath.IsAbs(p) {
					p = filepath.Join(root, p)
				}
				if err := s.wait(cmd, s.mgr.Expand(p)); err != nil {
					return fmt.Errorf("expand %s: %w", p, err)
				}
			}

			if err := s.print(cmd); err != nil {
				return err
			}
			return s.save()
		},
	}
	cmd.Flags().StringArrayVar(&expand, "expand", nil, "expand this folder after opening (repeatable)")
	return cmd
}

// startup opens the recent folder, with its saved state, if the config
// allows it.
func (s *session) startup(cmd *cobra.Command) error {
	recent, err := s.db.RecentFolder()
	if err != nil {
		return err
	}
	if recent != "" {
		state, err := s.db.TreeState(recent)
		if err != nil {
			return err
		}
		if err := s.mgr.SetSessionState(state); err != nil {
			return err
		}
	}
	if err := s.wait(cmd, s.mgr.Startup()); err != nil {
		return err
	}
	if s.mgr.RootPath() == "" {
		if !s.cfg.Tree.AutoOpenLast {
			return errors.New("no folder given and tree.autoOpenLast is off")
		}
		return errors.New("no folder given and no recent folder to open")
	}
	return nil
}
