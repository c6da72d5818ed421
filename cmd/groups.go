package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emaland/cmp/internal/inventory"
)

func newGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage resource groups and their bindings",
	}
	cmd.AddCommand(
		newGroupAddCmd(),
		newGroupListCmd(),
		newGroupRmCmd(),
		newGroupBindCmd(),
		newGroupUnbindCmd(),
		newGroupShowCmd(),
	)
	return cmd
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s id %q", kind, s)
	}
	return id, nil
}

func newGroupAddCmd() *cobra.Command {
	var req inventory.GroupCreate

	cmd := &cobra.Command{
		Use:   "add CODE NAME",
		Short: "Create a resource group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Code, req.Name = args[0], args[1]
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			g, err := a.groups.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added resource group %s (id %d)\n", g.Code, g.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.CloudProviderCode, "provider", "", "Provider the group mirrors, if any")
	cmd.Flags().StringVar(&req.CloudResourceGroupID, "cloud-id", "", "Vendor resource group id")
	cmd.Flags().StringVar(&req.Description, "description", "", "Description")
	return cmd
}

func newGroupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List resource groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			groups, total, err := a.groups.Page(cmd.Context(), 1, 100)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if total == 0 {
				fmt.Fprintln(out, "No resource groups.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCODE\tNAME\tPROVIDER\tDESCRIPTION")
			for _, g := range groups {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", g.ID, g.Code, g.Name, dash(g.CloudProviderCode), dash(g.Description))
			}
			return w.Flush()
		},
	}
}

func newGroupRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a resource group and its bindings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("resource group", args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.groups.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed resource group %d\n", id)
			return nil
		},
	}
}

func newGroupBindCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "bind GROUP_ID TYPE RESOURCE_ID",
		Short: "Bind a resource to a group",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("resource group", args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			b, err := a.groups.Bind(cmd.Context(), inventory.BindRequest{
				ResourceGroupID:   id,
				CloudProviderCode: providerOrDefault(provider),
				ResourceType:      args[1],
				ResourceID:        args[2],
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bound %s %s to group %d (binding %d)\n", b.ResourceType, b.ResourceID, id, b.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider code (default from config)")
	return cmd
}

func newGroupUnbindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unbind BINDING_ID",
		Short: "Remove a binding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("binding", args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.groups.Unbind(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed binding %d\n", id)
			return nil
		},
	}
}

func newGroupShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "List the resources bound to a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("resource group", args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			g, err := a.groups.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			bindings, total, err := a.groups.Bindings(cmd.Context(), id, 1, 100)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s): %d bound resources\n", g.Name, g.Code, total)
			if total == 0 {
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BINDING\tTYPE\tRESOURCE\tPROVIDER")
			for _, b := range bindings {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", b.ID, b.ResourceType, b.ResourceID, dash(b.CloudProviderCode))
			}
			return w.Flush()
		},
	}
}
