package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/justyntemme/filetree/internal/tree"
)

var errNoRecent = errors.New("no folder has been opened")

func newRefreshCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "List the last opened folder again, keeping what was expanded",
		Args:  cobra.NoArgs,
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

			recent, err := s.db.RecentFolder()
			if err != nil {
				return err
			}
			if recent == "" {
				return errNoRecent
			}
			if err := s.openRoot(cmd, recent); err != nil {
				return err
			}
			if err := s.wait(cmd, s.mgr.Refresh()); err != nil {
				return err
			}
			if err := s.print(cmd); err != nil {
				return err
			}
			return s.save()
		},
	}
}

func newCloseCmd(g *globalFlags) *cobra.Command {
	var forget bool
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close the last opened folder",
		Long: `Close the last opened folder. With --forget the folder is no longer
opened on startup and its saved expansion state is dropped.`,
		Args: cobra.NoArgs,
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

			recent, err := s.db.RecentFolder()
			if err != nil {
				return err
			}
			if recent == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no folder open")
				return nil
			}
			if err := s.openRoot(cmd, recent); err != nil {
				return err
			}
			if !forget {
				if err := s.save(); err != nil {
					return err
				}
			}
			if err := s.mgr.Close(forget); err != nil {
				return err
			}
			if forget {
				if err := s.db.ClearTreeState(recent); err != nil {
					return err
				}
			}
			if ev, ok := s.bus.Last(); ok && ev.Root == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "closed %s\n", recent)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&forget, "forget", false, "forget the folder and its saved state")
	return cmd
}

func newStateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the saved expansion state of the last opened folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			recent, err := db.RecentFolder()
			if err != nil {
				return err
			}
			if recent == "" {
				return errNoRecent
			}
			state, err := db.TreeState(recent)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "root: %s\n", recent)
			for _, p := range tree.Decode(state).Paths() {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	}
}
