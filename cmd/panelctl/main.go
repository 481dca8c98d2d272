package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	pbversion "github.com/fluxpanel/panelbridge/internal/version"
	"github.com/spf13/cobra"
)

const defaultWait = 2 * time.Second

// OutputFormatter writes command results either as indented JSON (--json)
// or as plain messages.
type OutputFormatter struct {
	jsonMode bool
}

func newOutputFormatter(cmd *cobra.Command) *OutputFormatter {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &OutputFormatter{jsonMode: jsonMode}
}

// Print writes data as JSON to stdout. Commands call it only in JSON mode and
// print their own human-readable form otherwise.
func (f *OutputFormatter) Print(data interface{}) error {
	return writeJSON(os.Stdout, data)
}

// Success reports a completed mutation.
func (f *OutputFormatter) Success(message string, data map[string]interface{}) error {
	if !f.jsonMode {
		fmt.Println(message)
		return nil
	}
	output := map[string]interface{}{"success": true, "message": message}
	for k, v := range data {
		output[k] = v
	}
	return writeJSON(os.Stdout, output)
}

// Error reports a failure on stderr and returns it wrapped with message.
func (f *OutputFormatter) Error(message string, err error) error {
	switch {
	case f.jsonMode:
		output := map[string]interface{}{"success": false, "error": message}
		if err != nil {
			output["details"] = err.Error()
		}
		_ = writeJSON(os.Stderr, output)
	case err != nil:
		fmt.Fprintf(os.Stderr, "%s: %v\n", message, err)
	default:
		fmt.Fprintln(os.Stderr, message)
	}
	if err == nil {
		return errors.New(message)
	}
	return fmt.Errorf("%s: %w", message, err)
}

func writeJSON(w io.Writer, v interface{}) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "panelctl",
		Short: "panelctl - manage panel addresses through the native bridge",
		Long: `panelctl drives the panel address bridge the way the panel web app does:
it detects the native host (Android interface object or iOS message
handlers), sends list/save/switch/delete calls and waits for the host to
deliver the updated address list.

Addresses are persisted by a reference host backed by a local SQLite store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
				log.SetOutput(io.Discard)
			}
		},
	}
	rootCmd.Version = pbversion.String()
	rootCmd.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	flags := rootCmd.PersistentFlags()
	flags.Bool("json", false, "Output in JSON format")
	flags.Bool("verbose", false, "Log bridge, host and session activity to stderr")
	flags.String("host", "", "Native host to emulate (android|ios|none|auto); defaults to the stored preference or auto")
	flags.String("db", "", "Path to the address store (defaults to ~/.panelbridge/config.db)")
	flags.String("script", "", "JavaScript file evaluated in the page before the bridge is detected")
	flags.Duration("wait", defaultWait, "How long to wait for the host to deliver the address list")

	rootCmd.AddCommand(
		newValidateCommand(),
		newDetectCommand(),
		newListCommand(),
		newAddCommand(),
		newSwitchCommand(),
		newDeleteCommand(),
		newStatusCommand(),
		newConfigCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

func main() {
	log.SetFlags(log.LstdFlags)
	if err := newRootCommand().Execute(); err != nil {
		// Error is already printed by command handlers
		os.Exit(1)
	}
}
