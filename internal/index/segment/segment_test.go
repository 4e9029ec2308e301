package segment

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index/indextest"
)

func TestWriteAndOpen(t *testing.T) {
	dir := t.TempDir()
	mem := indextest.Segment("mem", indextest.Documents())

	name, err := NewWriter(dir).Write(mem)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	r, err := Open(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.MaxDoc() != mem.MaxDoc() || r.DocID(3) != "doc-3" {
		t.Errorf("MaxDoc = %d DocID(3) = %s", r.MaxDoc(), r.DocID(3))
	}
	if r.TermCount() != len(mem.Entries()) {
		t.Errorf("TermCount = %d, want %d", r.TermCount(), len(mem.Entries()))
	}
	for _, e := range mem.Entries() {
		got, err := r.Postings(e.Term)
		if err != nil {
			t.Fatalf("Postings(%s): %v", e.Term, err)
		}
		if !reflect.DeepEqual(got, e.Postings) {
			t.Errorf("Postings(%s) = %+v, want %+v", e.Term, got, e.Postings)
		}
		if r.TermStats(e.Term) != mem.TermStats(e.Term) {
			t.Errorf("TermStats(%s) = %+v, want %+v", e.Term, r.TermStats(e.Term), mem.TermStats(e.Term))
		}
	}
	if r.FieldStats(indextest.Field) != mem.FieldStats(indextest.Field) {
		t.Errorf("FieldStats mismatch")
	}
	if r.FieldLength(indextest.Field, 4) != 9 {
		t.Errorf("FieldLength(4) = %d, want 9", r.FieldLength(indextest.Field, 4))
	}
	missing, err := r.Postings(index.Term{Field: indextest.Field, Text: "horse"})
	if err != nil || missing != nil {
		t.Errorf("Postings(horse) = %v, %v", missing, err)
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.spdx")
	if err := os.WriteFile(path, make([]byte, HeaderSize), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("expected error for bad magic")
	}
}

func TestWriteEmpty(t *testing.T) {
	if _, err := NewWriter(t.TempDir()).Write(index.NewMemSegment("e", nil, nil, nil)); err == nil {
		t.Error("expected error writing empty segment")
	}
}
