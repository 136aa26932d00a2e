package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge"
)

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the directive functions",
	Long: `List the functions a directive can name after the field, as in
total:currency('EUR'). The default formatter is listed as "(default)".`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range wordmerge.New().Evaluators() {
			if name == "" {
				name = "(default)"
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	rootCmd.AddCommand(functionsCmd)
}
