// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-stream/internal/config"
)

func (a *App) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(a.configShowCmd(), a.configInitCmd(), a.configPathCmd())
	return cmd
}

func (a *App) configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.jsonOutput {
				return NewJSONResponse("config show", a.cfg).Print(a.Out)
			}
			return toml.NewEncoder(a.Out).Encode(a.cfg)
		},
	}
}

func (a *App) configInitCmd() *cobra.Command {
	var path string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				dir, err := config.ConfigDir()
				if err != nil {
					return err
				}
				path = filepath.Join(dir, "config.toml")
			}
			if _, err := os.Stat(path); err == nil && !force {
				return NewValidationErrorWithExample("path", path, "file already exists", "rigrun-stream config init --force")
			}
			if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return err
			}
			if a.jsonOutput {
				return NewJSONResponse("config init", map[string]string{"path": path}).Print(a.Out)
			}
			fmt.Fprintf(a.Out, "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Destination (default ~/.rigrun-stream/config.toml)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func (a *App) configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "List the config file search order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := config.SearchPaths()
			if err != nil {
				return err
			}
			active := a.configFile()
			if a.jsonOutput {
				return NewJSONResponse("config path", map[string]any{"search": paths, "active": active}).Print(a.Out)
			}
			for _, p := range paths {
				marker := "  "
				if p == active {
					marker = "* "
				}
				fmt.Fprintln(a.Out, marker+p)
			}
			if active != "" && a.configPath != "" {
				fmt.Fprintln(a.Out, "* "+active+" (--config)")
			}
			return nil
		},
	}
}
