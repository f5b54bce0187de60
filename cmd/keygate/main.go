// Package main is the entry point for keygate.
package main

import (
	"context"
	"os"

	"charm.land/fang/v2"
	"github.com/spf13/cobra"
)

const (
	defaultConfigFile = "config.yaml"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "keygate",
	Short: "Authentication layer for an LLM API gateway",
	Long: `keygate sits between internal users and an LLM API gateway. It turns
proxy-asserted identities, magic-link email, and GitHub OAuth into accounts
on the gateway and short-lived delegated keys for them.`,
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file path (default: ./"+defaultConfigFile+" or ~/.config/keygate/"+defaultConfigFile+")")
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}
