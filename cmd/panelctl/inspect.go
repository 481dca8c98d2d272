package main

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"github.com/spf13/cobra"

	"github.com/fluxpanel/panelbridge/internal/bridge"
	"github.com/fluxpanel/panelbridge/internal/validate"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "validate <address>",
		Short:         "Check a panel address against the local format rules",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          validateAddress,
	}
}

func newDetectCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "detect",
		Short:         "Report which native host convention the page exposes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          detectHost,
	}
}

func validateAddress(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	address := args[0]

	class, err := validate.Classify(address)
	if err != nil {
		var verr *validate.ValidationError
		if out.jsonMode && errors.As(err, &verr) {
			_ = out.Print(map[string]interface{}{
				"address": address,
				"valid":   false,
				"rule":    string(verr.Rule),
				"detail":  verr.Detail,
			})
			return err
		}
		return out.Error("Invalid panel address", err)
	}

	if out.jsonMode {
		return out.Print(map[string]interface{}{
			"address":    address,
			"valid":      true,
			"host_class": class.String(),
		})
	}
	fmt.Printf("Valid panel address (%s host)\n", class)
	return nil
}

func detectHost(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)

	r, err := openRuntime(cmd)
	if err != nil {
		return out.Error("Failed to open panel page", err)
	}
	defer r.Close()

	var kind bridge.Kind
	if err := r.page.Exec(func(*goja.Runtime) error {
		kind = bridge.DetectWithObject(r.page, r.androidObject())
		return nil
	}); err != nil {
		return out.Error("Failed to inspect page", err)
	}

	data := map[string]interface{}{
		"kind":           kind.String(),
		"host_mode":      r.hostMode,
		"reference_host": r.host != nil,
	}
	if kind == bridge.KindAndroid {
		data["android_object"] = r.androidObject()
	}
	if out.jsonMode {
		return out.Print(data)
	}

	switch kind {
	case bridge.KindAndroid:
		fmt.Printf("Android host (window.%s)\n", r.androidObject())
	case bridge.KindIOS:
		fmt.Println("iOS host (webkit.messageHandlers)")
	default:
		fmt.Println("No native host; panel addresses are unavailable")
	}
	return nil
}
