package assemble_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shuttle/internal/assemble"
	"shuttle/internal/checkpoint"
	"shuttle/internal/document"
)

func sampleRows() []assemble.Row {
	return []assemble.Row{
		{ID: 1, Page: 1, Original: "first source", Final: "first rendering",
			Outputs: map[string]string{"1_alpha": "draft a", "2_beta": "draft b"}},
		{ID: 2, Page: 1, Original: "second source", Final: "second rendering"},
		{ID: 3, Page: 2, Original: "third source", Final: "third rendering",
			Note: "failed after 3 attempts: model refuses"},
	}
}

func TestRowsPairsAndOrdersByPageThenID(t *testing.T) {
	units := []document.WorkUnit{
		{ID: 3, Page: 2, Original: "late"},
		{ID: 1, Page: 1, Original: "early"},
		{ID: 2, Page: 1, Original: "middle"},
		{ID: 9, Page: 9, Original: "never processed"},
	}
	cp := checkpoint.New()
	cp.SetResult(3, checkpoint.Entry{Page: 2, Original: "late", Final: "late out"})
	cp.SetResult(1, checkpoint.Entry{Page: 1, Original: "early", Final: "early out"})
	cp.SetResult(2, checkpoint.Entry{Page: 1, Original: "middle", Final: "middle out"})

	rows := assemble.Rows(units, cp)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, want := range []int{1, 2, 3} {
		if rows[i].ID != want {
			t.Fatalf("row %d has id %d, want %d", i, rows[i].ID, want)
		}
	}
}

func TestWriteDocumentMarksPageBoundaries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "book.txt")
	if err := assemble.WriteDocument(path, sampleRows()); err != nil {
		t.Fatalf("WriteDocument failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	text := string(data)

	if !strings.HasPrefix(text, "--- page 1 ---") {
		t.Fatalf("missing leading page marker:\n%s", text)
	}
	if strings.Count(text, "--- page 1 ---") != 1 {
		t.Fatalf("page marker must appear once per page:\n%s", text)
	}
	if !strings.Contains(text, "--- page 2 ---") {
		t.Fatalf("missing second page marker:\n%s", text)
	}
	first := strings.Index(text, "first rendering")
	second := strings.Index(text, "second rendering")
	third := strings.Index(text, "third rendering")
	if first < 0 || second < first || third < second {
		t.Fatalf("renderings out of order:\n%s", text)
	}
}

func TestWriteDocumentOmitsMarkersWithoutPages(t *testing.T) {
	rows := []assemble.Row{{ID: 1, Final: "only rendering"}}
	path := filepath.Join(t.TempDir(), "book.txt")
	if err := assemble.WriteDocument(path, rows); err != nil {
		t.Fatalf("WriteDocument failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if strings.Contains(string(data), "--- page") {
		t.Fatalf("unexpected page marker:\n%s", data)
	}
}

func TestWriteComparisonSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.compare.txt")
	if err := assemble.WriteComparison(path, sampleRows()); err != nil {
		t.Fatalf("WriteComparison failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	text := string(data)

	if !strings.Contains(text, "==== unit 1 (page 1) ====") {
		t.Fatalf("missing unit header:\n%s", text)
	}
	alpha := strings.Index(text, "[1_alpha]\ndraft a")
	beta := strings.Index(text, "[2_beta]\ndraft b")
	if alpha < 0 || beta < alpha {
		t.Fatalf("candidate sections missing or unsorted:\n%s", text)
	}
	if !strings.Contains(text, "[source]\nfirst source") || !strings.Contains(text, "[final]\nfirst rendering") {
		t.Fatalf("source/final sections missing:\n%s", text)
	}
	if !strings.Contains(text, "[note] failed after 3 attempts") {
		t.Fatalf("note section missing:\n%s", text)
	}
	if strings.Count(text, "[note]") != 1 {
		t.Fatalf("note should only appear for noted rows:\n%s", text)
	}
}

func TestWriteJSONRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.json")
	rows := sampleRows()
	if err := assemble.WriteJSON(path, rows); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var decoded []assemble.Row
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(decoded) != len(rows) {
		t.Fatalf("expected %d rows, got %d", len(rows), len(decoded))
	}
	if decoded[0].Outputs["1_alpha"] != "draft a" || decoded[2].Note == "" {
		t.Fatalf("round trip lost fields: %#v", decoded)
	}
}
