package main

import (
	"fmt"

	"github.com/matheus3301/wpp-puppet/internal/session"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List known sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := session.List()
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if jsonFlag {
			if names == nil {
				names = []string{}
			}
			return printJSON(cmd.OutOrStdout(), names)
		}
		if len(names) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
			return nil
		}
		active := session.Resolve(sessionFlag)
		for _, n := range names {
			marker := " "
			if n == active {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, n)
		}
		return nil
	},
}
