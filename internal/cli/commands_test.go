package cli

import (
	"testing"
	"time"

	"github.com/julianstephens/cdcsync/internal/config"
)

func TestParseColumns_TableDriven(t *testing.T) {
	testCases := []struct {
		name      string
		specs     []string
		expectErr bool
	}{
		{name: "Simple", specs: []string{"foo:int"}},
		{name: "Parametrized", specs: []string{"name:varchar(50)"}},
		{name: "Nullable", specs: []string{"note:text:nullable"}},
		{name: "Multiple", specs: []string{"id:bigint", "v:text"}},
		{name: "MissingType", specs: []string{"foo"}, expectErr: true},
		{name: "EmptyName", specs: []string{":int"}, expectErr: true},
		{name: "EmptyType", specs: []string{"foo:"}, expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cols, err := parseColumns(tc.specs)
			if tc.expectErr {
				if err == nil {
					t.Fatal("expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(cols) != len(tc.specs) {
				t.Fatalf("expected %d columns, got %d", len(tc.specs), len(cols))
			}
		})
	}
}

func TestParseColumns_NullableFlag(t *testing.T) {
	cols, err := parseColumns([]string{"note:text:nullable", "id:bigint"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cols[0].Nullable {
		t.Error("expected note to be nullable")
	}
	if cols[1].Nullable {
		t.Error("expected id to be NOT NULL")
	}
}

func TestReplicateCmd_MergePrecedence(t *testing.T) {
	cfg := &config.Config{
		SourceDSN:  "file-source",
		TargetDSN:  "file-target",
		Table:      "file-table",
		PauseEvery: config.Duration(30 * time.Second),
	}

	cmd := &ReplicateCmd{
		SourceDSN:  "flag-source",
		Checkpoint: "/tmp/ckpt.db",
	}
	cmd.merge(cfg)

	if cfg.SourceDSN != "flag-source" {
		t.Errorf("flag must win over file: %q", cfg.SourceDSN)
	}
	if cfg.TargetDSN != "file-target" || cfg.Table != "file-table" {
		t.Error("unset flags must not clobber file values")
	}
	if cfg.CheckpointPath != "/tmp/ckpt.db" {
		t.Errorf("checkpoint flag lost: %q", cfg.CheckpointPath)
	}
	if cfg.PauseEvery.Std() != 30*time.Second {
		t.Errorf("pause_every clobbered: %v", cfg.PauseEvery.Std())
	}
	if cfg.MetricsPort != 9100 {
		t.Errorf("merge must normalize defaults, metrics_port = %d", cfg.MetricsPort)
	}
}
