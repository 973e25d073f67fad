package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vowmarket-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no migration matching %s", suffix)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	require.NoError(t, migrate.Validate(migrate.Embedded()))

	embedded, err := fs.Glob(migrate.Embedded(), "*.sql")
	require.NoError(t, err)
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	require.Len(t, embedded, len(onDisk))
}

func TestValidateRejectsBadMigrations(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name":          {"create_things.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")}},
		"duplicate version": {"20260101000001_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")}, "20260101000001_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")}},
		"missing down":      {"20260101000001_a.sql": {Data: []byte("-- +goose Up\n")}},
	}
	for name, source := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, migrate.Validate(source))
		})
	}
}

func TestPaymentsMigrationEnforcesOnePaymentPerSellerGroup(t *testing.T) {
	content := readMigration(t, "create_payments")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS payments",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_order_seller ON payments (order_id, seller_id)",
		"CHECK (seller_amount_cents + admin_amount_cents = amount_cents)",
		"DROP TABLE IF EXISTS payments",
	}
	for _, check := range checks {
		if !strings.Contains(content, check) {
			t.Fatalf("payments migration missing %q", check)
		}
	}
}

func TestRefundRequestsMigrationAllowsOnePendingPerItem(t *testing.T) {
	content := readMigration(t, "create_refund_requests")
	want := "CREATE UNIQUE INDEX IF NOT EXISTS ux_refund_requests_pending_item ON refund_requests (order_item_id) WHERE status = 'pending'"
	if !strings.Contains(content, want) {
		t.Fatalf("refund requests migration missing partial unique index")
	}
}

func TestOrderItemsMigrationChecksSplit(t *testing.T) {
	content := readMigration(t, "create_orders")
	if !strings.Contains(content, "CHECK (seller_amount_cents + admin_amount_cents = price_cents)") {
		t.Fatalf("order items migration missing split check")
	}
}

func TestCreateSQLMigrationWritesGooseTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Payout Holds")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_payout_holds.sql"))
	require.NoError(t, migrate.ValidateDir(dir))

	_, err = migrate.CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}
