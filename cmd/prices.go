package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emaland/cmp/internal/cloud"
)

func newPricesCmd() *cobra.Command {
	var (
		provider string
		region   string
		charge   string
		period   int
	)

	cmd := &cobra.Command{
		Use:   "prices INSTANCE_TYPE",
		Short: "Quote one instance type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, ok := cloud.ParseChargeType(charge)
			if !ok {
				return fmt.Errorf("unknown charge type %q", charge)
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			prices, err := a.instanceTypes.PricingOptions(cmd.Context(), providerOrDefault(provider), cloud.PriceQuery{
				RegionID:     region,
				InstanceType: args[0],
				ChargeType:   ct,
				Period:       period,
			})
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(prices))
			for k := range prices {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RESOURCE\tPRICE")
			for _, k := range keys {
				fmt.Fprintf(w, "%s\t%.4f\n", k, prices[k])
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider code (default from config)")
	cmd.Flags().StringVar(&region, "region", "", "Region id (required)")
	cmd.Flags().StringVar(&charge, "charge", "PostPaid", "Charge type: PostPaid, PrePaid or Spot")
	cmd.Flags().IntVar(&period, "period", 1, "Months, for PrePaid")
	cmd.MarkFlagRequired("region")
	return cmd
}
