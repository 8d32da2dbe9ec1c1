package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/chronicle-engine/chronicle"
)

type stubItem struct {
	attrs     chronicle.Attributes
	updatedAt time.Time
}

func (i stubItem) ItemType() string                     { return "widget" }
func (i stubItem) ItemID() string                       { return "1" }
func (i stubItem) ItemAttributes() chronicle.Attributes { return i.attrs }
func (i stubItem) ItemUpdatedAt() time.Time             { return i.updatedAt }

func exportFixture(t *testing.T) (*Service, *chronicle.Log) {
	t.Helper()
	tracker := chronicle.NewTracker(chronicle.NewMemoryStore(), nil)
	ctx := chronicle.WithWhodunnit(context.Background(), "alice")
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	created := stubItem{attrs: chronicle.Attributes{"name": "Widget"}, updatedAt: t0}
	if _, err := tracker.RecordCreate(ctx, created); err != nil {
		t.Fatalf("record create: %v", err)
	}
	renamed := stubItem{attrs: chronicle.Attributes{"name": "Fidget"}, updatedAt: t0.Add(time.Hour)}
	if _, err := tracker.RecordUpdate(ctx, renamed, created.attrs); err != nil {
		t.Fatalf("record update: %v", err)
	}

	log, err := tracker.Versions(ctx, "widget", "1")
	if err != nil {
		t.Fatalf("load versions: %v", err)
	}
	return NewService(tracker), log
}

func TestWriteCSV(t *testing.T) {
	svc, log := exportFixture(t)

	var buf bytes.Buffer
	if err := svc.WriteCSV(&buf, log); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 version rows, got %d", len(rows))
	}
	if rows[0][0] != "id" || rows[0][7] != "changes" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][1] != "create" || rows[2][1] != "update" {
		t.Errorf("expected create then update, got %v %v", rows[1][1], rows[2][1])
	}
	if rows[1][4] != "alice" {
		t.Errorf("expected whodunnit alice, got %q", rows[1][4])
	}
	if !strings.Contains(rows[2][7], "name: Widget -> Fidget") {
		t.Errorf("expected a change summary, got %q", rows[2][7])
	}
	if _, err := time.Parse(time.RFC3339Nano, rows[1][6]); err != nil {
		t.Errorf("expected RFC 3339 created_at, got %q", rows[1][6])
	}
}

func TestWorkbook(t *testing.T) {
	svc, log := exportFixture(t)

	f, err := svc.Workbook(log)
	if err != nil {
		t.Fatalf("build workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 version rows, got %d", len(rows))
	}
	if rows[0][0] != "id" {
		t.Errorf("unexpected header row: %v", rows[0])
	}
	if rows[1][1] != "create" || rows[2][1] != "update" {
		t.Errorf("expected create then update, got %v %v", rows[1][1], rows[2][1])
	}
}

func TestWriteWorkbookStreams(t *testing.T) {
	svc, log := exportFixture(t)

	var buf bytes.Buffer
	if err := svc.WriteWorkbook(&buf, log); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	// XLSX files are zip archives.
	if buf.Len() == 0 || buf.Bytes()[0] != 'P' || buf.Bytes()[1] != 'K' {
		t.Error("expected a zip-framed workbook payload")
	}
}
