package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emaland/cmp/internal/cloud"
)

func newSyncCmd() *cobra.Command {
	var (
		provider  string
		minCPU    int
		minMem    float64
		arch      string
		bareMetal bool
		names     []string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh the local instance type catalog from the vendor",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			code := providerOrDefault(provider)
			if len(names) > 0 {
				n, missing, err := a.instanceTypes.SyncTypes(cmd.Context(), code, names)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Synced %d instance types for %s\n", n, code)
				if len(missing) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Not offered by %s: %s\n", code, strings.Join(missing, ", "))
				}
				return nil
			}

			filter := cloud.CatalogFilter{MinCPU: minCPU, MinMemory: minMem, Architecture: arch}
			if cmd.Flags().Changed("bare-metal") {
				filter.BareMetal = &bareMetal
			}
			n, err := a.instanceTypes.SyncCatalog(cmd.Context(), code, filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Synced %d instance types for %s\n", n, code)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "Provider code (default from config)")
	cmd.Flags().IntVar(&minCPU, "min-cpu", 0, "Minimum vCPUs")
	cmd.Flags().Float64Var(&minMem, "min-mem", 0, "Minimum memory (GiB)")
	cmd.Flags().StringVar(&arch, "arch", "", "Architecture (x86_64 or arm64)")
	cmd.Flags().StringSliceVar(&names, "type", nil, "Sync only these instance types, ignoring the filters")
	cmd.Flags().BoolVar(&bareMetal, "bare-metal", false, "Only bare metal types (false: exclude them)")
	return cmd
}
