package workflow_test

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/apotek-erp/apotek-erp/testing"
)

// tableColumns extracts the column names of one CREATE TABLE block from the
// DDL so the repository's SQL can be checked against the shipped schema.
func tableColumns(t *testing.T, ddl, table string) map[string]bool {
	t.Helper()
	columns := make(map[string]bool)
	marker := "CREATE TABLE IF NOT EXISTS " + table + " ("
	scanner := bufio.NewScanner(strings.NewReader(ddl))
	inTable := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == marker {
			inTable = true
			continue
		}
		if !inTable {
			continue
		}
		if strings.HasPrefix(line, ");") {
			break
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			columns[fields[0]] = true
		}
	}
	require.NotEmpty(t, columns, "table %s not found in schema", table)
	return columns
}

// The repository addresses columns by name inside WithTx; a rename in the DDL
// that the SQL misses would make every engine call fail and roll back. Keep
// these lists in sync with repository.go.
func TestRepositorySQLMatchesSchema(t *testing.T) {
	ddl, err := os.ReadFile(filepath.Join("..", "..", "scripts", "schema.sql"))
	require.NoError(t, err)

	used := map[string][]string{
		"workflow_transactions": {
			"id", "kind", "reference_no", "status", "supplier_id", "reason", "notes",
			"total_amount", "created_by", "approved_by", "approved_at", "rejected_at",
			"rejection_reason", "created_at",
		},
		"workflow_items": {
			"id", "transaction_id", "product_id", "batch_id", "batch_number",
			"expiry_date", "quantity", "quantity_change", "unit_cost", "total_cost",
			"reason",
		},
		"workflow_status_history": {
			"id", "transaction_id", "status", "changed_by", "reason", "created_at",
		},
	}
	for table, cols := range used {
		defined := tableColumns(t, string(ddl), table)
		for _, col := range cols {
			require.True(t, defined[col], "%s.%s is referenced by the repository but missing from the schema", table, col)
		}
	}
}
