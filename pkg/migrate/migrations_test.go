package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CONSTRAINT orders_order_reference_key UNIQUE (order_reference)",
		"status IN ('preparing', 'ready', 'out-for-delivery', 'completed', 'cancelled')",
		"idx_orders_email_created_at ON orders (lower(email), created_at DESC)",
		"DROP TABLE IF EXISTS orders",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPendingCheckoutsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_pending_checkouts.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS pending_checkouts",
		"CONSTRAINT pending_checkouts_idempotency_key_key UNIQUE (idempotency_key)",
		"expires_at timestamptz NOT NULL",
		"order_id uuid REFERENCES orders(id) ON DELETE SET NULL",
		"WHERE status = 'awaiting_payment'",
		"DROP TABLE IF EXISTS pending_checkouts",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationIndexesUnpublished(t *testing.T) {
	content := readMigration(t, "*_create_outbox_events.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"attempt_count integer NOT NULL DEFAULT 0",
		"WHERE published_at IS NULL",
		"DROP TABLE IF EXISTS outbox_events",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPendingCheckoutSubmissionMigration(t *testing.T) {
	content := readMigration(t, "*_pending_checkout_submission.sql")

	checks := []string{
		"ADD COLUMN IF NOT EXISTS payment_instructions text",
		"CHECK (status IN ('submitting', 'awaiting_payment', 'confirmed', 'expired'))",
		"DROP COLUMN IF EXISTS payment_instructions",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDir_ShippedMigrations(t *testing.T) {
	if err := ValidateDir("migrations"); err != nil {
		t.Fatalf("shipped migrations invalid: %v", err)
	}
}

func TestValidateDir_RejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"badname.sql":                     "-- +goose Up\n-- +goose Down\n",
		"20260101000000_missing_down.sql": "-- +goose Up\nSELECT 1;\n",
		"20260101000000_reversed.sql":     "-- +goose Down\n-- +goose Up\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if err := ValidateDir(dir); err == nil {
				t.Fatalf("expected %s to be rejected", name)
			}
		})
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	path, err := createSQLMigrationAt(dir, "Add Order Notes!", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20260301093000_add_order_notes.sql" {
		t.Fatalf("unexpected filename %s", filepath.Base(path))
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
	if _, err := createSQLMigrationAt(dir, "add order notes", now); err == nil {
		t.Fatal("expected duplicate migration to fail")
	}
	if _, err := createSQLMigrationAt(dir, "!!!", now); err == nil {
		t.Fatal("expected unusable name to fail")
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
