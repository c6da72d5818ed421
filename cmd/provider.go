package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emaland/cmp/internal/inventory"
)

func newProviderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage cloud provider accounts",
	}
	cmd.AddCommand(newProviderAddCmd(), newProviderListCmd(), newProviderRmCmd())
	return cmd
}

func newProviderAddCmd() *cobra.Command {
	var req inventory.ProviderCreate

	cmd := &cobra.Command{
		Use:   "add CODE",
		Short: "Register a provider account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.ProviderCode = args[0]
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.providerSvc.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added provider %s (id %d)\n", p.ProviderCode, p.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.AccessKeyID, "access-key", "", "Access key id")
	cmd.Flags().StringVar(&req.AccessKeySecret, "secret-key", "", "Access key secret")
	cmd.Flags().StringVar(&req.ProviderName, "name", "", "Display name")
	cmd.Flags().StringVar(&req.Endpoint, "endpoint", "", "API endpoint override")
	cmd.Flags().StringVar(&req.Description, "description", "", "Description")
	cmd.Flags().BoolVar(&req.Verify, "verify", false, "Check the credentials with the vendor first")
	return cmd
}

func newProviderListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List provider accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			providers, total, err := a.providerSvc.Page(cmd.Context(), 1, 100)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if total == 0 {
				fmt.Fprintln(out, "No providers registered.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCODE\tNAME\tACCESS KEY\tENDPOINT")
			for _, p := range providers {
				endpoint := p.Endpoint
				if endpoint == "" {
					endpoint = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.ProviderCode, p.ProviderName, p.AccessKeyID, endpoint)
			}
			return w.Flush()
		},
	}
}

func newProviderRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Remove a provider account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid provider id %q", args[0])
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.providerSvc.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed provider %d\n", id)
			return nil
		},
	}
}
