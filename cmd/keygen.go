package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emaland/cmp/internal/store"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new credential encryption key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := store.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
