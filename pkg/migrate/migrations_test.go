package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationsDirValidates(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestMigrationsCoverCoreTables(t *testing.T) {
	entries, err := os.ReadDir("migrations")
	require.NoError(t, err)

	var all strings.Builder
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := os.ReadFile(filepath.Join("migrations", e.Name()))
		require.NoError(t, err)
		all.Write(b)
	}

	ddl := all.String()
	for _, table := range []string{"users", "products", "orders", "order_items", "consolidated_orders", "consolidated_items", "outbox_events"} {
		require.Containsf(t, ddl, "CREATE TABLE "+table, "missing DDL for %s", table)
	}
	require.Contains(t, ddl, "CHECK (stock >= 0)", "stock non-negativity must be enforced in the schema")
}
