package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emaland/cmp/internal/cloud"
)

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newVPCsCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "vpcs REGION",
		Short: "List the VPCs of a region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			vpcs, err := a.networks.ListVPCs(cmd.Context(), providerOrDefault(provider), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VPC\tNAME\tCIDR\tDEFAULT")
			for _, v := range vpcs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", v.VPCID, dash(v.VPCName), dash(v.CIDRBlock), v.IsDefault)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider code (default from config)")
	return cmd
}

func newVSwitchesCmd() *cobra.Command {
	var (
		provider string
		vpc      string
	)

	cmd := &cobra.Command{
		Use:     "vswitches REGION",
		Aliases: []string{"subnets"},
		Short:   "List the vswitches (subnets) of a region",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			vswitches, err := a.networks.ListVSwitches(cmd.Context(), providerOrDefault(provider), args[0], vpc)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VSWITCH\tNAME\tVPC\tZONE\tCIDR")
			for _, v := range vswitches {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", v.VSwitchID, dash(v.VSwitchName), v.VPCID, dash(v.ZoneID), dash(v.CIDRBlock))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider code (default from config)")
	cmd.Flags().StringVar(&vpc, "vpc", "", "Only this VPC")
	return cmd
}

func newSecurityGroupsCmd() *cobra.Command {
	var (
		provider string
		vpc      string
	)

	cmd := &cobra.Command{
		Use:   "security-groups REGION",
		Short: "List the security groups of a region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			groups, err := a.networks.ListSecurityGroups(cmd.Context(), providerOrDefault(provider), args[0], vpc)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "GROUP\tNAME\tVPC\tDESCRIPTION")
			for _, g := range groups {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.SecurityGroupID, dash(g.SecurityGroupName), dash(g.VPCID), dash(g.Description))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider code (default from config)")
	cmd.Flags().StringVar(&vpc, "vpc", "", "Only this VPC")
	return cmd
}

func newImagesCmd() *cobra.Command {
	var (
		provider string
		osType   string
		arch     string
	)

	cmd := &cobra.Command{
		Use:   "images REGION",
		Short: "List the system images of a region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			images, err := a.networks.ListImages(cmd.Context(), providerOrDefault(provider), cloud.ImageQuery{
				RegionID:     args[0],
				OSType:       osType,
				Architecture: arch,
			})
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "IMAGE\tNAME\tOS\tARCH")
			for _, img := range images {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", img.ImageID, dash(img.ImageName), dash(img.OSType), dash(img.Architecture))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider code (default from config)")
	cmd.Flags().StringVar(&osType, "os", "linux", "Operating system: linux or windows (empty for both)")
	cmd.Flags().StringVar(&arch, "arch", "", "Architecture (x86_64 or arm64)")
	return cmd
}
