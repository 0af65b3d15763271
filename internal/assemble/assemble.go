// Package assemble turns a finished checkpoint back into ordered documents:
// an integrated translation, a source/candidate comparison, and a JSON
// export for downstream tooling.
package assemble

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shuttle/internal/checkpoint"
	"shuttle/internal/document"
	"shuttle/internal/services"
)

// Row is one assembled unit in final document order.
type Row struct {
	ID       int               `json:"id"`
	Page     int               `json:"page"`
	Original string            `json:"original"`
	Outputs  map[string]string `json:"outputs,omitempty"`
	Final    string            `json:"final"`
	Note     string            `json:"note,omitempty"`
}

// Rows pairs units with their checkpoint entries and sorts by page then id.
// Units with no stored result are skipped; a completed run has none.
func Rows(units []document.WorkUnit, cp *checkpoint.Checkpoint) []Row {
	rows := make([]Row, 0, len(units))
	for _, unit := range units {
		entry, ok := cp.Result(unit.ID)
		if !ok {
			continue
		}
		rows = append(rows, Row{
			ID:       unit.ID,
			Page:     entry.Page,
			Original: entry.Original,
			Outputs:  entry.Outputs,
			Final:    entry.Final,
			Note:     entry.Note,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Page != rows[j].Page {
			return rows[i].Page < rows[j].Page
		}
		return rows[i].ID < rows[j].ID
	})
	return rows
}

// WriteDocument writes the integrated translation with page boundary markers.
func WriteDocument(path string, rows []Row) error {
	var b strings.Builder
	lastPage := -1
	for _, row := range rows {
		if row.Page > 0 && row.Page != lastPage {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "--- page %d ---\n\n", row.Page)
			lastPage = row.Page
		}
		b.WriteString(strings.TrimSpace(row.Final))
		b.WriteString("\n\n")
	}
	return writeAtomic(path, []byte(b.String()))
}

// WriteComparison writes source text, every candidate output, and the final
// rendering per unit, for manual review of where the integrator diverged.
func WriteComparison(path string, rows []Row) error {
	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "==== unit %d", row.ID)
		if row.Page > 0 {
			fmt.Fprintf(&b, " (page %d)", row.Page)
		}
		b.WriteString(" ====\n\n")
		b.WriteString("[source]\n")
		b.WriteString(strings.TrimSpace(row.Original))
		b.WriteString("\n\n")
		for _, key := range sortedKeys(row.Outputs) {
			fmt.Fprintf(&b, "[%s]\n%s\n\n", key, strings.TrimSpace(row.Outputs[key]))
		}
		b.WriteString("[final]\n")
		b.WriteString(strings.TrimSpace(row.Final))
		b.WriteString("\n\n")
		if row.Note != "" {
			fmt.Fprintf(&b, "[note] %s\n\n", row.Note)
		}
	}
	return writeAtomic(path, []byte(b.String()))
}

// WriteJSON exports the rows for downstream tooling.
func WriteJSON(path string, rows []Row) error {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrValidation, "assemble", "write", "encode rows", err)
	}
	return writeAtomic(path, data)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// writeAtomic stages output in a temp file and renames it into place so a
// crash mid-write never leaves a truncated document.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrValidation, "assemble", "write", "create output directory", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return services.Wrap(services.ErrValidation, "assemble", "write", "create temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return services.Wrap(services.ErrValidation, "assemble", "write", "write output", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return services.Wrap(services.ErrValidation, "assemble", "write", "close output", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return services.Wrap(services.ErrValidation, "assemble", "write", "replace output", err)
	}
	return nil
}
