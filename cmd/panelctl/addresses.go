package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fluxpanel/panelbridge/internal/panel"
	"github.com/fluxpanel/panelbridge/internal/session"
	"github.com/fluxpanel/panelbridge/internal/validate"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored panel addresses",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          listAddresses,
	}
}

func newAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <address>",
		Short: "Save a panel address",
		Long: `Save a panel address under name. The address must be an http or https URL
whose host is localhost, an IPv4 address, a bracketed IPv6 address or a
domain name. The first saved address becomes current.`,
		Example:       "  panelctl add home http://192.168.1.100:3000",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          addAddress,
	}
}

func newSwitchCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "switch <name>",
		Short:         "Make a stored panel address current",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          switchAddress,
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "delete <name>",
		Short:         "Delete a stored panel address",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          deleteAddress,
	}
}

func listAddresses(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)

	r, err := openRuntime(cmd)
	if err != nil {
		return out.Error("Failed to open panel page", err)
	}
	defer r.Close()

	if err := r.load(); err != nil {
		return out.Error("Failed to load panel addresses", err)
	}
	snap, err := r.snapshot()
	if err != nil {
		return out.Error("Failed to read panel addresses", err)
	}

	if out.jsonMode {
		return out.Print(snap)
	}
	printAddressTable(snap.Addresses)
	return nil
}

func addAddress(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	name, address := args[0], args[1]

	// Validate before touching the page so bad input never reaches a host.
	if err := validate.CheckPanelAddress(address); err != nil {
		return out.Error("Invalid panel address", err)
	}

	return mutate(cmd, out, fmt.Sprintf("Saved %s (%s)", name, address), func(c *session.Coordinator) error {
		return c.Add(name, address)
	})
}

func switchAddress(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	name := args[0]
	return mutate(cmd, out, fmt.Sprintf("Switched to %s", name), func(c *session.Coordinator) error {
		return c.Switch(name)
	})
}

func deleteAddress(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	name := args[0]
	return mutate(cmd, out, fmt.Sprintf("Deleted %s", name), func(c *session.Coordinator) error {
		return c.Delete(name)
	})
}

// mutate loads the address list, applies op and reports the delivered list.
func mutate(cmd *cobra.Command, out *OutputFormatter, message string, op func(*session.Coordinator) error) error {
	r, err := openRuntime(cmd)
	if err != nil {
		return out.Error("Failed to open panel page", err)
	}
	defer r.Close()

	if err := r.load(); err != nil {
		return out.Error("Failed to load panel addresses", err)
	}
	if err := r.do(op); err != nil {
		if session.IsDuplicateName(err) {
			return out.Error("Panel address already exists", err)
		}
		return out.Error("Panel address update failed", err)
	}

	snap, err := r.snapshot()
	if err != nil {
		return out.Error("Failed to read panel addresses", err)
	}
	if snap.Kind == "none" {
		message = "No native host available; nothing changed"
	}

	if out.jsonMode {
		return out.Success(message, map[string]interface{}{
			"kind":      snap.Kind,
			"addresses": snap.Addresses,
			"base_url":  snap.BaseURL,
		})
	}
	fmt.Println(message)
	printAddressTable(snap.Addresses)
	return nil
}

func printAddressTable(set panel.AddressSet) {
	if len(set) == 0 {
		fmt.Println("No panel addresses stored")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CURRENT\tNAME\tADDRESS")
	for _, a := range set {
		marker := ""
		if a.IsCurrent {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", marker, a.Name, a.Address)
	}
	w.Flush()
}
