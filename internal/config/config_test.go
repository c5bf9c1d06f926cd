package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	specPath := filepath.Join(dir, "spec.json")
	if err := os.WriteFile(specPath, []byte(`{
		"G": {"fields": [{"name": "value", "type": "uint64", "size": 8}]}
	}`), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}

	iniPath := filepath.Join(dir, "config.ini")
	content := "" +
		"mcast_ip: 233.54.12.1\n" +
		"mcast_port: 26400\n" +
		"mcast_source_ip:\n" +
		"interface_ip: 10.0.0.5\n" +
		"mcast_rerequester_ip: 10.0.0.9\n" +
		"mcast_rerequester_port: 26401\n" +
		"protocol_spec: spec.json\n" +
		"[recovery_settings]\n" +
		"max_recovery_message_count: 500\n"
	if err := os.WriteFile(iniPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write ini: %v", err)
	}
	return iniPath
}

func TestLoadAppConfigParsesNetAndRecovery(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir)

	cfg, err := LoadAppConfig(path)
	if err != nil {
		t.Fatalf("LoadAppConfig: %v", err)
	}
	if cfg.Net.MulticastGroup != "233.54.12.1" || cfg.Net.MulticastPort != 26400 {
		t.Fatalf("net mismatch: %+v", cfg.Net)
	}
	if cfg.Net.MulticastSource != "" {
		t.Fatalf("expected ASM (empty source), got %q", cfg.Net.MulticastSource)
	}
	if cfg.Net.RerequestAddr != "10.0.0.9" || cfg.Net.RerequestPort != 26401 {
		t.Fatalf("rerequest mismatch: %+v", cfg.Net)
	}
	if cfg.Recovery.MaxRecoveryMessageCount != 500 {
		t.Fatalf("max_recovery_message_count = %d, want 500", cfg.Recovery.MaxRecoveryMessageCount)
	}
	if cfg.Catalog == nil {
		t.Fatal("catalog not loaded")
	}
	if !cfg.RetransmissionAvailable() {
		t.Fatal("expected retransmission peer to be available")
	}
}

func TestLoadAppConfigMissingProtocolSpecFails(t *testing.T) {
	dir := t.TempDir()
	iniPath := filepath.Join(dir, "config.ini")
	content := "mcast_ip: 233.54.12.1\nmcast_port: 26400\ninterface_ip: 10.0.0.5\n"
	if err := os.WriteFile(iniPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write ini: %v", err)
	}
	if _, err := LoadAppConfig(iniPath); err == nil {
		t.Fatal("expected error for missing protocol_spec")
	}
}

func TestLoadAppConfigMissingMcastIPFails(t *testing.T) {
	dir := t.TempDir()
	iniPath := filepath.Join(dir, "config.ini")
	os.WriteFile(filepath.Join(dir, "spec.json"), []byte(`{}`), 0o600)
	content := "mcast_port: 26400\ninterface_ip: 10.0.0.5\nprotocol_spec: spec.json\n"
	if err := os.WriteFile(iniPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write ini: %v", err)
	}
	if _, err := LoadAppConfig(iniPath); err == nil {
		t.Fatal("expected error for missing mcast_ip")
	}
}
