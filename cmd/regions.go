package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Print the regions enabled for the account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		regions, err := a.regions.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, r := range regions {
			fmt.Fprintln(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(regionsCmd)
}
