package migration

import (
	"io/fs"
	"testing"

	"github.com/smallbiznis/kay/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	assert.True(t, names["000001_init.up.sql"])
	assert.True(t, names["000001_init.down.sql"])
}

func TestAutoMigrateOnSQLite(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, Run(conn, db.TypeSQLite))

	for _, table := range []string{"admin_users", "products", "quotations", "quotation_items", "invoices", "invoice_items", "invoice_payments", "notifications"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}
