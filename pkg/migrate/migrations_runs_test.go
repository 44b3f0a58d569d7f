package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/citymotion/tripfacts/pkg/migrate"
)

func TestRunsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_pipeline_runs.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no pipeline_runs migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS pipeline_runs",
		"CHECK (status IN ('ok', 'no_data', 'failed'))",
		"CHECK (rows_read >= 0)",
		"CREATE INDEX IF NOT EXISTS idx_pipeline_runs_watermark",
		"DROP TABLE IF EXISTS pipeline_runs",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migrations dir should validate: %v", err)
	}
}
