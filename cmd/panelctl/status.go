package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	pbversion "github.com/fluxpanel/panelbridge/internal/version"
)

// versionPath is the panel API endpoint reporting the server build.
const versionPath = "/api/version"

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Show the current panel address and the API base URL it selects",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          showStatus,
	}
	cmd.Flags().Bool("ping", false, "Query the panel API at the selected base URL")
	return cmd
}

func showStatus(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	ping, _ := cmd.Flags().GetBool("ping")

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

	status := map[string]interface{}{
		"kind":          snap.Kind,
		"callback_name": snap.CallbackName,
		"base_url":      snap.BaseURL,
		"addresses":     len(snap.Addresses),
		"profile":       r.store.ProfileName(),
		"store":         r.store.Path(),
	}
	if cur, ok := snap.Addresses.Current(); ok {
		status["current"] = cur.Name
		status["current_address"] = cur.Address
	} else {
		status["current"] = nil
	}

	var panelVersion string
	var pingErr error
	if ping {
		var info pbversion.PanelInfo
		pingErr = r.client.GetJSON(context.Background(), versionPath, &info)
		if pingErr == nil {
			panelVersion = info.Version
			status["panel_version"] = panelVersion
			if w := pbversion.CheckPanel(info); w != "" {
				status["mismatch"] = true
				status["warning"] = w
			}
		} else {
			status["panel_error"] = pingErr.Error()
		}
	}

	if out.jsonMode {
		return out.Print(status)
	}

	fmt.Println("Panel Status:")
	fmt.Printf("  Host: %v\n", status["kind"])
	if cur, ok := snap.Addresses.Current(); ok {
		fmt.Printf("  Current: %s (%s)\n", cur.Name, cur.Address)
	} else {
		fmt.Println("  Current: none")
	}
	fmt.Printf("  Stored: %d (%s, profile %s)\n", len(snap.Addresses), r.store.Path(), r.store.ProfileName())
	fmt.Printf("  Base URL: %s\n", snap.BaseURL)
	if ping {
		if pingErr != nil {
			fmt.Printf("  Panel: unavailable (%v)\n", pingErr)
		} else {
			fmt.Printf("  Panel: %s\n", pbversion.FormatVersion(panelVersion))
			if w, ok := status["warning"]; ok {
				fmt.Println(w)
			}
		}
	}
	return nil
}
