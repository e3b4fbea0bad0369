package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sessionYAML = `version: 1
session:
  id: engine-bench
  name: Engine bench
participant:
  id: 2
network:
  api_port: 9090
sync:
  snapshot_interval: 200ms
  claim_timeout: 2s
interaction:
  snap_threshold: 0.05
tick_rate: 30
paths:
  scene: scenes/engine.yaml
  tasks: scenes/engine.tasks.json
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadSessionConfig(t *testing.T) {
	cfg, err := LoadSessionConfig(writeConfig(t, sessionYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.ID != "engine-bench" || cfg.Participant.ID != 2 || cfg.Participant.Authority {
		t.Errorf("unexpected identity: %+v %+v", cfg.Session, cfg.Participant)
	}
	if cfg.APIPort() != 9090 {
		t.Errorf("api port %d", cfg.APIPort())
	}
	if cfg.MQTTURL() != defaultMQTTURL {
		t.Errorf("mqtt url %s", cfg.MQTTURL())
	}
	if cfg.Sync.SnapshotInterval != 200*time.Millisecond || cfg.Sync.ClaimTimeout != 2*time.Second {
		t.Errorf("sync %+v", cfg.Sync)
	}
	if cfg.TickInterval() != time.Second/30 {
		t.Errorf("tick interval %v", cfg.TickInterval())
	}

	// unspecified interaction options keep their defaults
	if cfg.Interaction.SnapThreshold != 0.05 || !cfg.Interaction.Snap || !cfg.Interaction.DeselectOnSnap {
		t.Errorf("interaction %+v", cfg.Interaction)
	}
	if cfg.Paths.Scene != "scenes/engine.yaml" {
		t.Errorf("scene path %s", cfg.Paths.Scene)
	}
}

func TestLoadSessionConfigEnvOverrides(t *testing.T) {
	t.Setenv("ASSEMBLY_SESSION_ID", "override")
	t.Setenv("ASSEMBLY_PARTICIPANT_ID", "1")
	t.Setenv("ASSEMBLY_AUTHORITY", "true")
	t.Setenv("MQTT_URL", "tcp://broker:1883")
	t.Setenv("PGHOST", "db")
	t.Setenv("PGPASSWORD_FILE", writeSecret(t, "pw\n"))

	cfg, err := LoadSessionConfig(writeConfig(t, sessionYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.ID != "override" || cfg.Participant.ID != 1 || !cfg.Participant.Authority {
		t.Errorf("overrides not applied: %+v %+v", cfg.Session, cfg.Participant)
	}
	if cfg.MQTTURL() != "tcp://broker:1883" {
		t.Errorf("mqtt url %s", cfg.MQTTURL())
	}
	if cfg.Database.Host != "db" || cfg.Database.Port != 5432 || cfg.Database.Password != "pw" {
		t.Errorf("database %+v", cfg.Database)
	}
}

func TestLoadSessionConfigErrors(t *testing.T) {
	cases := map[string]string{
		"version":    "version: 2\nsession:\n  id: x\n",
		"session id": "version: 1\n",
		"yaml":       "version: [\n",
	}
	for name, doc := range cases {
		if _, err := LoadSessionConfig(writeConfig(t, doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := LoadSessionConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
