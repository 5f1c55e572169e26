package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	return newRootCommandWithContext(newCommandContext(new(string)))
}

func newRootCommandWithContext(ctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mediainsight",
		Short:         "Turn recordings into marketing insight",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(ctx.envFlag, "env-file", "", "Load settings from this .env file")

	rootCmd.AddCommand(newAnalyzeCommand(ctx))
	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newSegmentsCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))
	return rootCmd
}
