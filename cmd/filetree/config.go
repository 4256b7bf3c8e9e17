package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/justyntemme/filetree/internal/config"
)

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or reset the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config file, backing up the current one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.NewManager(g.configPath).Path()
			backup, err := config.GenerateConfig(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if backup != "" {
				fmt.Fprintf(out, "backed up %s to %s\n", path, backup)
			}
			fmt.Fprintf(out, "wrote %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a tree setting and save it to the config file",
		Long: "Change a tree setting and save it to the config file. Keys: " +
			strings.Join(settableKeys(), ", ") + ".",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, ok := setters[args[0]]
			if !ok {
				return fmt.Errorf("unknown key %q (want one of %s)", args[0], strings.Join(settableKeys(), ", "))
			}
			cm := config.NewManager(g.configPath)
			if err := cm.Load(); err != nil {
				return err
			}
			if err := set(cm, args[1]); err != nil {
				return fmt.Errorf("set %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
			return nil
		},
	})
	return cmd
}

func boolSetter(set func(*config.Manager, bool) error) func(*config.Manager, string) error {
	return func(cm *config.Manager, value string) error {
		on, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		return set(cm, on)
	}
}

var setters = map[string]func(*config.Manager, string) error{
	"tree.autoOpenLast":  boolSetter((*config.Manager).SetAutoOpenLast),
	"tree.compactChains": boolSetter((*config.Manager).SetCompactChains),
	"tree.showDotfiles":  boolSetter((*config.Manager).SetShowDotfiles),
	"tree.nameOrder":     (*config.Manager).SetNameOrder,
}

func settableKeys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
