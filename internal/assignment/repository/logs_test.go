package repository

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// The log queries scan straight into LogEntry, so the table definition has to
// stay in lockstep with logColumns. This guard reads the migration instead of
// requiring a database.
func TestAssignmentLogsSchemaMatchesLogColumns(t *testing.T) {
	table := loadTableDefinition(t, "assignment_logs")

	for _, col := range strings.Split(logColumns, ", ") {
		if !strings.Contains(table, col) {
			t.Errorf("migration lacks assignment_logs column %q scanned by logColumns", col)
		}
	}

	// LogEntry.ID is int64 and breaks ties in both log orderings, so the id
	// column must be an integer sequence, never a random UUID.
	idLine := ""
	for _, line := range strings.Split(table, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "id ") {
			idLine = line
			break
		}
	}
	if idLine == "" {
		t.Fatal("no id column in assignment_logs definition")
	}
	if !strings.Contains(idLine, "BIGINT") || !strings.Contains(idLine, "IDENTITY") {
		t.Errorf("assignment_logs.id must be a BIGINT identity column to scan into int64, got %q", strings.TrimSpace(idLine))
	}
}

func loadTableDefinition(t *testing.T, name string) string {
	t.Helper()

	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", "00001_init.sql"))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}

	marker := "CREATE TABLE " + name + " ("
	start := strings.Index(string(raw), marker)
	if start < 0 {
		t.Fatalf("migration does not create table %s", name)
	}
	rest := string(raw)[start:]
	end := strings.Index(rest, ");")
	if end < 0 {
		t.Fatalf("unterminated definition for table %s", name)
	}
	return rest[:end]
}
