package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emaland/cmp/internal/cloud"
	"github.com/emaland/cmp/internal/instancetype"
)

func newSearchCmd() *cobra.Command {
	var (
		c           instancetype.Criteria
		charge      string
		cpu         int
		mem         float64
		showSoldOut bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "List orderable instance types in a region with live prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ct, ok := cloud.ParseChargeType(charge)
			if !ok {
				return fmt.Errorf("unknown charge type %q", charge)
			}
			c.ChargeType = ct
			c.ProviderCode = providerOrDefault(c.ProviderCode)
			c.HideSoldOut = !showSoldOut
			if cmd.Flags().Changed("cpu") {
				c.CPU = &cpu
			}
			if cmd.Flags().Changed("mem") {
				c.Memory = &mem
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return runSearch(cmd.Context(), cmd.OutOrStdout(), a.instanceTypes, c)
		},
	}

	cmd.Flags().StringVar(&c.ProviderCode, "provider", "", "Provider code (default from config)")
	cmd.Flags().StringVar(&c.RegionID, "region", "", "Region id (required)")
	cmd.Flags().StringVar(&c.ZoneID, "zone", "", "Zone id")
	cmd.Flags().StringVar(&charge, "charge", "PostPaid", "Charge type: PostPaid, PrePaid or Spot")
	cmd.Flags().StringVar(&c.DiskCategory, "disk", "", "System disk category")
	cmd.Flags().IntVar(&cpu, "cpu", 0, "Exact vCPU count")
	cmd.Flags().Float64Var(&mem, "mem", 0, "Exact memory (GiB)")
	cmd.Flags().StringVar(&c.GPUSpec, "gpu-spec", "", "GPU spec substring, e.g. A10")
	cmd.Flags().StringVar(&c.GPUName, "gpu-name", "", "GPU name substring of the type id")
	cmd.Flags().BoolVar(&showSoldOut, "show-soldout", false, "Include types without stock")
	cmd.Flags().IntVar(&c.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&c.PageSize, "page-size", instancetype.DefaultPageSize, "Rows per page")
	cmd.MarkFlagRequired("region")
	return cmd
}

func runSearch(ctx context.Context, out io.Writer, svc *instancetype.Service, c instancetype.Criteria) error {
	page, err := svc.SearchAvailable(ctx, c)
	if err != nil {
		return err
	}
	if page.Total == 0 {
		fmt.Fprintln(out, "No instance types match the given filters.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INSTANCE TYPE\tVCPU\tMEMORY\tGPU\tZONE\tSTOCK\tPRICE")
	for _, it := range page.Items {
		gpu := "-"
		if it.GPUAmount > 0 {
			gpu = fmt.Sprintf("%d x %s", it.GPUAmount, it.GPUSpec)
		}
		zone := it.ZoneID
		if zone == "" {
			zone = "-"
		}
		price := "n/a"
		if it.PriceStatus == instancetype.PriceStatusOK {
			price = fmt.Sprintf("%.4f", it.Price)
		}
		fmt.Fprintf(w, "%s\t%d\t%.0f GiB\t%s\t%s\t%s\t%s\n",
			it.InstanceTypeID, it.CPUCoreCount, it.MemorySize, gpu, zone, it.StatusCategory, price)
	}
	w.Flush()
	fmt.Fprintf(out, "Page %d, %d of %d matching types\n", page.Page, len(page.Items), page.Total)
	return nil
}
