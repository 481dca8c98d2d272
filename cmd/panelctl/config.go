package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/fluxpanel/panelbridge/internal/bootstrap"
	"github.com/fluxpanel/panelbridge/internal/config"
	"github.com/fluxpanel/panelbridge/internal/config/store"
	"github.com/fluxpanel/panelbridge/internal/session"
	"github.com/fluxpanel/panelbridge/internal/validate"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:           "config",
		Short:         "Configuration management commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	showCmd := &cobra.Command{
		Use:           "show",
		Short:         "Show the resolved configuration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          configShow,
	}

	setCmd := &cobra.Command{
		Use:           "set",
		Short:         "Update the bootstrap configuration and stored preferences",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          configSet,
	}
	setCmd.Flags().String("default-origin", "", "Panel API origin used when no address is current")
	setCmd.Flags().String("token", "", "API token sent as a bearer token")
	setCmd.Flags().Bool("token-stdin", false, "Read the API token from stdin (no echo on a terminal)")
	setCmd.Flags().String("android-object", "", "Global name of the Android interface object")
	setCmd.Flags().String("duplicate-policy", "", "How adds of an existing name are handled (host|reject)")
	setCmd.Flags().String("callback-name", "", "Fixed global callback name (default: generated per run)")
	setCmd.Flags().String("name", "", "Optional label for this configuration")
	setCmd.Flags().String("default-host", "", "Preferred --host value stored for the profile (android|ios|none|auto)")
	setCmd.Flags().Bool("clear", false, "Remove the bootstrap configuration file")

	configCmd.AddCommand(showCmd, setCmd)
	return configCmd
}

func configShow(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	paths := config.GetPaths()

	settings, err := config.Resolve(paths.Bootstrap)
	if err != nil {
		return out.Error("Failed to resolve configuration", err)
	}
	boot, err := bootstrap.Load(paths.Bootstrap)
	if err != nil {
		return out.Error("Failed to read bootstrap configuration", err)
	}

	info := map[string]any{
		"home":             paths.Home,
		"bootstrap_path":   paths.Bootstrap,
		"configured":       boot != nil,
		"default_origin":   settings.DefaultOrigin,
		"token_configured": settings.APIToken != "",
		"android_object":   settings.AndroidObject,
		"duplicate_policy": settings.DuplicatePolicy,
		"callback_name":    settings.CallbackName,
	}
	if boot != nil && !boot.UpdatedAt.IsZero() {
		info["updated_at"] = boot.UpdatedAt.Format(time.RFC3339)
	}
	if boot != nil && boot.Metadata != nil && boot.Metadata.Name != "" {
		info["name"] = boot.Metadata.Name
	}

	if st, err := openConfigStore(cmd); err == nil {
		prefs, loadErr := st.LoadSettings(context.Background(), settingHost)
		st.Close()
		if loadErr == nil && prefs[settingHost] != "" {
			info["default_host"] = prefs[settingHost]
		}
	}

	if out.jsonMode {
		return out.Print(info)
	}

	fmt.Println("Configuration:")
	fmt.Printf("  Home: %s\n", paths.Home)
	fmt.Printf("  Bootstrap: %s (configured: %v)\n", paths.Bootstrap, boot != nil)
	fmt.Printf("  Default origin: %s\n", settings.DefaultOrigin)
	fmt.Printf("  Token configured: %v\n", settings.APIToken != "")
	fmt.Printf("  Android object: %s\n", valueOr(settings.AndroidObject, "(default)"))
	fmt.Printf("  Duplicate policy: %s\n", settings.DuplicatePolicy)
	fmt.Printf("  Callback name: %s\n", valueOr(settings.CallbackName, "(generated)"))
	if v, ok := info["default_host"]; ok {
		fmt.Printf("  Default host: %v\n", v)
	}
	return nil
}

func configSet(cmd *cobra.Command, _ []string) error {
	out := newOutputFormatter(cmd)
	paths := config.GetPaths()

	if clear, _ := cmd.Flags().GetBool("clear"); clear {
		if err := bootstrap.Remove(paths.Bootstrap); err != nil {
			return out.Error("Failed to clear bootstrap configuration", err)
		}
		return out.Success("Bootstrap configuration cleared", map[string]interface{}{
			"path": paths.Bootstrap,
		})
	}

	cfg, err := bootstrap.Load(paths.Bootstrap)
	if err != nil {
		return out.Error("Failed to read bootstrap configuration", err)
	}
	if cfg == nil {
		cfg = &bootstrap.Config{}
	}

	changed := false
	if cmd.Flags().Changed("default-origin") {
		origin, _ := cmd.Flags().GetString("default-origin")
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin != "" {
			if err := validate.HTTPURL(origin); err != nil {
				return out.Error("Invalid default origin", err)
			}
		}
		cfg.DefaultOrigin = origin
		changed = true
	}
	if cmd.Flags().Changed("token") {
		cfg.APIToken, _ = cmd.Flags().GetString("token")
		cfg.APIToken = strings.TrimSpace(cfg.APIToken)
		changed = true
	}
	if fromStdin, _ := cmd.Flags().GetBool("token-stdin"); fromStdin {
		token, err := readToken()
		if err != nil {
			return out.Error("Failed to read token", err)
		}
		cfg.APIToken = token
		changed = true
	}
	if cmd.Flags().Changed("android-object") {
		cfg.AndroidObject, _ = cmd.Flags().GetString("android-object")
		cfg.AndroidObject = strings.TrimSpace(cfg.AndroidObject)
		changed = true
	}
	if cmd.Flags().Changed("duplicate-policy") {
		raw, _ := cmd.Flags().GetString("duplicate-policy")
		policy, err := session.ParseDuplicatePolicy(raw)
		if err != nil {
			return out.Error("Invalid duplicate policy", err)
		}
		cfg.DuplicatePolicy = policy.String()
		changed = true
	}
	if cmd.Flags().Changed("callback-name") {
		cfg.CallbackName, _ = cmd.Flags().GetString("callback-name")
		cfg.CallbackName = strings.TrimSpace(cfg.CallbackName)
		changed = true
	}
	if cmd.Flags().Changed("name") {
		name, _ := cmd.Flags().GetString("name")
		cfg.Metadata = &bootstrap.MetaSection{Name: strings.TrimSpace(name)}
		changed = true
	}

	result := map[string]interface{}{"path": paths.Bootstrap}

	if cmd.Flags().Changed("default-host") {
		raw, _ := cmd.Flags().GetString("default-host")
		mode, err := normalizeHostMode(raw)
		if err != nil {
			return out.Error("Invalid default host", err)
		}
		st, err := openConfigStore(cmd)
		if err != nil {
			return out.Error("Failed to open address store", err)
		}
		err = st.SaveSettings(context.Background(), map[string]string{settingHost: mode})
		st.Close()
		if err != nil {
			return out.Error("Failed to save default host", err)
		}
		result["default_host"] = mode
	}

	if changed {
		if err := bootstrap.Save(paths.Bootstrap, cfg); err != nil {
			return out.Error("Failed to save bootstrap configuration", err)
		}
	} else if _, ok := result["default_host"]; !ok {
		return out.Error("Nothing to update; pass at least one flag", nil)
	}

	return out.Success("Configuration updated", result)
}

// readToken reads one line from stdin. On a terminal the input is not echoed.
func readToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if terminal.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "API token: ")
		raw, err := terminal.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("no token on stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func openConfigStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	return store.Open(store.Options{DBPath: config.ExpandPath(dbPath)})
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
