package network

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"cloudpico-station/internal/config"
)

const (
	wpaService      = "fi.w1.wpa_supplicant1"
	wpaPath         = dbus.ObjectPath("/fi/w1/wpa_supplicant1")
	wpaIface        = "fi.w1.wpa_supplicant1.Interface"
	wpaNetwork      = "fi.w1.wpa_supplicant1.Network"
	wpaGetInterface = wpaService + ".GetInterface"

	dbusPropertiesGet = "org.freedesktop.DBus.Properties.Get"
)

// Supplicant drives wpa_supplicant over the system D-Bus. The interface runs
// in station (client) mode; every candidate is added as an enabled network
// and wpa_supplicant picks the best one in range.
//
// The bus and the interface object are resolved on first use, so a daemon or
// interface that is not up yet at boot is retried by the join loop.
type Supplicant struct {
	name   string
	logger *slog.Logger

	mu    sync.Mutex
	conn  *dbus.Conn
	iface dbus.BusObject
}

func NewSupplicant(ifname string, logger *slog.Logger) *Supplicant {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supplicant{name: ifname, logger: logger}
}

func (s *Supplicant) object(ctx context.Context) (dbus.BusObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.iface != nil {
		return s.iface, nil
	}
	if s.conn == nil {
		conn, err := dbus.ConnectSystemBus()
		if err != nil {
			return nil, fmt.Errorf("connect system bus: %w", err)
		}
		s.conn = conn
	}

	var path dbus.ObjectPath
	if err := s.conn.Object(wpaService, wpaPath).CallWithContext(ctx, wpaGetInterface, 0, s.name).Store(&path); err != nil {
		return nil, fmt.Errorf("wpa_supplicant interface %q: %w", s.name, err)
	}
	s.iface = s.conn.Object(wpaService, path)
	return s.iface, nil
}

func (s *Supplicant) Register(ctx context.Context, aps []config.AccessPoint) error {
	iface, err := s.object(ctx)
	if err != nil {
		return err
	}

	if err := iface.CallWithContext(ctx, wpaIface+".RemoveAllNetworks", 0).Err; err != nil {
		return fmt.Errorf("remove networks: %w", err)
	}

	for i, ap := range aps {
		props, err := networkProps(ap, int32(len(aps)-i))
		if err != nil {
			return err
		}

		var netPath dbus.ObjectPath
		if err := iface.CallWithContext(ctx, wpaIface+".AddNetwork", 0, props).Store(&netPath); err != nil {
			return fmt.Errorf("add network %q: %w", ap.SSID, err)
		}
		if err := s.conn.Object(wpaService, netPath).SetProperty(wpaNetwork+".Enabled", dbus.MakeVariant(true)); err != nil {
			return fmt.Errorf("enable network %q: %w", ap.SSID, err)
		}
		s.logger.Debug("wifi access point registered", "iface", s.name, "ssid", ap.SSID, "path", netPath)
	}

	if err := iface.CallWithContext(ctx, wpaIface+".Reconnect", 0).Err; err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	return nil
}

// networkProps builds the AddNetwork arguments for ap. String values are
// quoted by wpa_supplicant, so a raw 64 hex digit key goes over as bytes.
func networkProps(ap config.AccessPoint, priority int32) (map[string]dbus.Variant, error) {
	props := map[string]dbus.Variant{
		"ssid": dbus.MakeVariant(ap.SSID),
		// Earlier candidates are preferred.
		"priority": dbus.MakeVariant(priority),
	}
	switch {
	case ap.Password == "":
		props["key_mgmt"] = dbus.MakeVariant("NONE")
	case config.IsRawPSK(ap.Password):
		key, err := hex.DecodeString(ap.Password)
		if err != nil {
			return nil, fmt.Errorf("psk for %q: %w", ap.SSID, err)
		}
		props["psk"] = dbus.MakeVariant(key)
	default:
		props["psk"] = dbus.MakeVariant(ap.Password)
	}
	return props, nil
}

func (s *Supplicant) State(ctx context.Context) (string, error) {
	iface, err := s.object(ctx)
	if err != nil {
		return "", err
	}

	var v dbus.Variant
	if err := iface.CallWithContext(ctx, dbusPropertiesGet, 0, wpaIface, "State").Store(&v); err != nil {
		return "", fmt.Errorf("read state: %w", err)
	}
	state, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("read state: unexpected type %T", v.Value())
	}
	return state, nil
}

func (s *Supplicant) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn, s.iface = nil, nil
	return err
}
