package migrate

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/agrolens/agrolens_auth/internal/db"
)

func TestRunRejectsEmptyDSN(t *testing.T) {
	for _, dsn := range []string{"", "   "} {
		if err := Run(dsn, "up"); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
			t.Fatalf("Run(%q) = %v, want DATABASE_URL error", dsn, err)
		}
	}
}

func TestRunRejectsUnknownDirection(t *testing.T) {
	for _, direction := range []string{"", "sideways", "UP"} {
		err := Run("postgres://localhost/agrolens", direction)
		if err == nil || !strings.Contains(err.Error(), "direction") {
			t.Fatalf("Run(direction=%q) = %v, want direction error", direction, err)
		}
	}
}

func TestMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(db.MigrationFS, "migrations/*.up.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(ups) == 0 {
		t.Fatalf("no migrations embedded")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(db.MigrationFS, down); err != nil {
			t.Fatalf("%s has no down migration", up)
		}
	}

	schema, err := fs.ReadFile(db.MigrationFS, ups[0])
	if err != nil {
		t.Fatalf("read %s: %v", ups[0], err)
	}
	for _, constraint := range []string{"identities_phone_key", "identities_username_key", "identities_email_key"} {
		if !strings.Contains(string(schema), constraint) {
			t.Fatalf("schema lacks constraint %s", constraint)
		}
	}
}
