package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/spf13/cobra"

	"github.com/fluxpanel/panelbridge/internal/bridge"
	"github.com/fluxpanel/panelbridge/internal/client"
	"github.com/fluxpanel/panelbridge/internal/config"
	"github.com/fluxpanel/panelbridge/internal/config/store"
	"github.com/fluxpanel/panelbridge/internal/host"
	"github.com/fluxpanel/panelbridge/internal/panel"
	"github.com/fluxpanel/panelbridge/internal/session"
	"github.com/fluxpanel/panelbridge/internal/webview"
)

// settingHost stores the preferred --host value per profile.
const settingHost = "host"

var errDeliveryTimeout = errors.New("timed out waiting for the host to deliver the address list")

// panelRuntime is one page with a native host and a bound coordinator.
type panelRuntime struct {
	page     *webview.Page
	store    *store.Store
	host     *host.Host
	coord    *session.Coordinator
	client   *client.HTTPClient
	settings config.Settings
	hostMode string
	wait     time.Duration
	updates  chan struct{}
}

// openRuntime builds the page for cmd: it opens the store, evaluates the
// optional page script, installs the requested reference host and binds a
// coordinator to the page.
func openRuntime(cmd *cobra.Command) (*panelRuntime, error) {
	settings, err := config.Resolve(config.GetPaths().Bootstrap)
	if err != nil {
		return nil, err
	}
	policy, err := session.ParseDuplicatePolicy(settings.DuplicatePolicy)
	if err != nil {
		return nil, err
	}

	st, err := openConfigStore(cmd)
	if err != nil {
		return nil, err
	}

	hostMode, err := resolveHostMode(cmd, st)
	if err != nil {
		st.Close()
		return nil, err
	}

	wait, _ := cmd.Flags().GetDuration("wait")
	if wait <= 0 {
		wait = defaultWait
	}

	logger := log.Default()
	r := &panelRuntime{
		page:     webview.New(webview.WithLogger(logger)),
		store:    st,
		settings: settings,
		hostMode: hostMode,
		wait:     wait,
		updates:  make(chan struct{}, 1),
	}

	if scriptPath, _ := cmd.Flags().GetString("script"); scriptPath != "" {
		src, err := os.ReadFile(config.ExpandPath(scriptPath))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("read page script: %w", err)
		}
		if err := r.page.RunScript(scriptPath, string(src)); err != nil {
			r.Close()
			return nil, err
		}
	}

	if err := r.installHost(logger); err != nil {
		r.Close()
		return nil, err
	}

	r.client = client.NewHTTPClient(settings.DefaultOrigin, settings.APIToken, nil,
		client.WithCurrentAddress(r.currentAddress),
		client.WithLogger(logger),
	)

	err = r.page.Exec(func(*goja.Runtime) error {
		coord, err := session.Bind(r.page, session.Options{
			Client:          r.client,
			CallbackName:    settings.CallbackName,
			DuplicatePolicy: policy,
			Logger:          logger,
		}, bridge.WithAndroidObject(settings.AndroidObject))
		if err != nil {
			return err
		}
		coord.Subscribe(func(session.State, panel.AddressSet) {
			select {
			case r.updates <- struct{}{}:
			default:
			}
		})
		r.coord = coord
		return nil
	})
	if err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func resolveHostMode(cmd *cobra.Command, st *store.Store) (string, error) {
	mode, _ := cmd.Flags().GetString("host")
	if mode == "" {
		stored, err := st.LoadSettings(context.Background(), settingHost)
		if err != nil {
			return "", err
		}
		mode = stored[settingHost]
	}
	return normalizeHostMode(mode)
}

func normalizeHostMode(mode string) (string, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case "":
		return "auto", nil
	case "auto", "android", "ios", "none":
		return mode, nil
	default:
		return "", fmt.Errorf("unknown host %q (expected android, ios, none or auto)", mode)
	}
}

// installHost installs the reference host for the runtime's mode. In auto
// mode a host defined by the page script wins; otherwise the Android host is
// installed.
func (r *panelRuntime) installHost(logger *log.Logger) error {
	mode := r.hostMode
	if mode == "auto" {
		var detected bridge.Kind
		if err := r.page.Exec(func(*goja.Runtime) error {
			detected = bridge.DetectWithObject(r.page, r.androidObject())
			return nil
		}); err != nil {
			return err
		}
		if detected != bridge.KindNone {
			logger.Printf("[Host] page script provides %s host", detected)
			return nil
		}
		mode = "android"
	}

	var err error
	switch mode {
	case "android":
		r.host, err = host.InstallAndroid(r.page, r.store, r.settings.AndroidObject, host.WithLogger(logger))
	case "ios":
		r.host, err = host.InstallIOS(r.page, r.store, host.WithLogger(logger))
	}
	return err
}

func (r *panelRuntime) androidObject() string {
	if r.settings.AndroidObject != "" {
		return r.settings.AndroidObject
	}
	return bridge.DefaultAndroidObject
}

// currentAddress runs on the page loop, from the coordinator's reinit hook.
func (r *panelRuntime) currentAddress() (string, bool) {
	if r.coord == nil {
		return "", false
	}
	return r.coord.CurrentAddress()
}

// do runs fn against the coordinator on the page loop and waits for the
// delivery it causes. Without a host nothing is delivered and do returns
// as soon as fn has run.
func (r *panelRuntime) do(fn func(c *session.Coordinator) error) error {
	err := r.page.Exec(func(*goja.Runtime) error {
		select {
		case <-r.updates:
		default:
		}
		return fn(r.coord)
	})
	if err != nil {
		return err
	}
	if r.coord.Kind() == bridge.KindNone {
		return nil
	}

	timer := time.NewTimer(r.wait)
	defer timer.Stop()
	select {
	case <-r.updates:
		return nil
	case <-timer.C:
		return errDeliveryTimeout
	}
}

// load requests the address list and waits for it.
func (r *panelRuntime) load() error {
	return r.do((*session.Coordinator).Load)
}

type snapshot struct {
	Kind         string           `json:"kind"`
	CallbackName string           `json:"callback_name"`
	State        string           `json:"state"`
	Addresses    panel.AddressSet `json:"addresses"`
	BaseURL      string           `json:"base_url"`
}

func (r *panelRuntime) snapshot() (snapshot, error) {
	var snap snapshot
	err := r.page.Exec(func(*goja.Runtime) error {
		snap = snapshot{
			Kind:         r.coord.Kind().String(),
			CallbackName: r.coord.CallbackName(),
			State:        r.coord.State().String(),
			Addresses:    r.coord.Addresses(),
		}
		return nil
	})
	if snap.Addresses == nil {
		snap.Addresses = panel.AddressSet{}
	}
	snap.BaseURL = r.client.BaseURL()
	return snap, err
}

func (r *panelRuntime) Close() {
	if r.page != nil {
		r.page.Close()
	}
	if r.store != nil {
		r.store.Close()
	}
}
