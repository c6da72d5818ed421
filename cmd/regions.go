package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRegionsCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "regions",
		Short: "List the regions of a provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			regions, err := a.regions.ListRegions(cmd.Context(), providerOrDefault(provider))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REGION\tNAME")
			for _, r := range regions {
				fmt.Fprintf(w, "%s\t%s\n", r.RegionID, r.RegionName)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider code (default from config)")
	return cmd
}

func newZonesCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "zones REGION",
		Short: "List the zones of a region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			zones, err := a.regions.ListZones(cmd.Context(), providerOrDefault(provider), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ZONE\tNAME")
			for _, z := range zones {
				fmt.Fprintf(w, "%s\t%s\n", z.ZoneID, z.ZoneName)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider code (default from config)")
	return cmd
}
