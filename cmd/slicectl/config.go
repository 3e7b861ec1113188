package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"slicecore/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or initialize slicectl configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default .slice/config.json in the current directory",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration, including applied overrides",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(cwd); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Wrote default configuration to %s/.slice/config.json\n", cwd)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}

	result, err := config.LoadConfigWithDetails(cwd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := json.MarshalIndent(result.Config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Println(string(data))

	if result.UsedDefaults {
		fmt.Fprintln(os.Stderr, "(no .slice/config.json found, showing defaults)")
	}
	for _, ov := range result.EnvOverrides {
		fmt.Fprintf(os.Stderr, "env override: %s -> %s = %v\n", ov.EnvVar, ov.Path, ov.Value)
	}
	return nil
}
