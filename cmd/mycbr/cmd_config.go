package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mycbr/internal/config"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or show the connection profile",
		// Overrides the root hook: init must work before any profile exists.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a profile with the defaults and the given flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.flags.configPath
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			p := config.Default()
			a.applyFlags(cmd, &p)
			if err := p.Validate(); err != nil {
				return fmt.Errorf("invalid settings: %w", err)
			}
			if err := config.Write(path, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile written to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing profile")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective profile (file, environment and flags combined)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadProfile(cmd); err != nil {
				return err
			}
			data, err := config.Marshal(*a.profile)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd, show)
	return cmd
}
