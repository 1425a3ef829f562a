package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"forensic_audit/pkg/core/agent"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the extraction cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached extraction",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.Cache == nil {
			return fmt.Errorf("the extraction cache is disabled")
		}
		n, err := a.Cache.Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached extractions\n", n)
		return nil
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the language model providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		active := a.Agents.GetActiveProvider()
		for _, name := range a.Agents.ListProviders() {
			marker := " "
			if name == active {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "extractor: %s\n", a.Agents.ProviderNameFor(agent.AgentExtractor))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}
