// Package config binds the channel endpoints, recovery bounds, and message
// catalog into the process-wide AppConfig, loaded once at startup from an
// INI-style key:value file plus the JSON schema source it points at.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marketdata/moldfeed/internal/protocol/schema"
)

// LoadAppConfig reads the INI-style config at path, resolves its
// protocol_spec entry relative to the config file's directory, and loads
// the message catalog from there.
func LoadAppConfig(path string) (AppConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("config: open failed (%s): %w", path, err)
	}
	defer f.Close()

	values, err := parseINI(f)
	if err != nil {
		return AppConfig{}, err
	}

	cfg := AppConfig{
		Net: NetConfig{
			MulticastGroup:  values.str("mcast_ip"),
			MulticastSource: values.str("mcast_source_ip"),
			InterfaceAddr:   values.str("interface_ip"),
			RerequestAddr:   values.str("mcast_rerequester_ip"),
			RecvBufBytes:    defaultRecvBufBytes,
		},
		Recovery: RecoveryConfig{
			MaxRecoveryMessageCount: defaultMaxRecoveryMessageCount,
		},
	}

	if port, ok, err := values.uint16("mcast_port"); err != nil {
		return AppConfig{}, err
	} else if ok {
		cfg.Net.MulticastPort = port
	}
	if port, ok, err := values.uint16("mcast_rerequester_port"); err != nil {
		return AppConfig{}, err
	} else if ok {
		cfg.Net.RerequestPort = port
	}
	if n, ok, err := values.int("recv_buf_bytes"); err != nil {
		return AppConfig{}, err
	} else if ok {
		cfg.Net.RecvBufBytes = n
	}
	if n, ok, err := values.uint16("max_recovery_message_count"); err != nil {
		return AppConfig{}, err
	} else if ok {
		cfg.Recovery.MaxRecoveryMessageCount = n
	}

	specRel := values.str("protocol_spec")
	if specRel == "" {
		return AppConfig{}, fmt.Errorf("config: protocol_spec not found in %s", path)
	}
	specPath := specRel
	if !filepath.IsAbs(specPath) {
		specPath = filepath.Join(filepath.Dir(path), specRel)
	}
	specData, err := os.ReadFile(specPath)
	if err != nil {
		return AppConfig{}, fmt.Errorf("config: cannot open protocol spec (%s): %w", specPath, err)
	}
	catalog, err := schema.Load(specData)
	if err != nil {
		return AppConfig{}, fmt.Errorf("config: protocol spec load failed (%s): %w", specPath, err)
	}
	cfg.Catalog = catalog

	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate enforces the AppConfig invariants from spec.md §3: a multicast
// group and port are required, and the message catalog must have loaded.
func Validate(cfg AppConfig) error {
	if strings.TrimSpace(cfg.Net.MulticastGroup) == "" {
		return fmt.Errorf("config: mcast_ip is required")
	}
	if cfg.Net.MulticastPort == 0 {
		return fmt.Errorf("config: mcast_port is required")
	}
	if strings.TrimSpace(cfg.Net.InterfaceAddr) == "" {
		return fmt.Errorf("config: interface_ip is required")
	}
	if cfg.Catalog == nil {
		return fmt.Errorf("config: message catalog failed to load")
	}
	// max_recovery_message_count is a uint16, so it is structurally
	// bounded at 65535 already.
	return nil
}

// RetransmissionAvailable reports whether a retransmission peer was
// configured at all. A deployment may run without one: gap-fill is then
// disabled with a warning, and a bounded download is refused at startup.
func (c AppConfig) RetransmissionAvailable() bool {
	return strings.TrimSpace(c.Net.RerequestAddr) != "" && c.Net.RerequestPort != 0
}
