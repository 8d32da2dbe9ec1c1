// Package export renders an item's version log into downloadable audit
// formats: CSV for plain tooling and an Excel workbook for review.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/chronicle-engine/chronicle"
)

const sheetName = "History"

var columns = []string{"id", "event", "item_type", "item_id", "whodunnit", "transaction_id", "created_at", "changes"}

type Service struct {
	tracker *chronicle.Tracker
}

func NewService(tracker *chronicle.Tracker) *Service {
	return &Service{tracker: tracker}
}

// WriteCSV streams the log as CSV with one row per version.
func (s *Service) WriteCSV(w io.Writer, log *chronicle.Log) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, v := range log.Versions() {
		row, err := s.row(&v)
		if err != nil {
			return err
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// Workbook renders the log as an Excel workbook with a single History
// sheet. The caller owns closing the returned file.
func (s *Service) Workbook(log *chronicle.Log) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for col, header := range columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header cell: %w", err)
		}
	}

	for i, v := range log.Versions() {
		row, err := s.row(&v)
		if err != nil {
			return nil, err
		}
		for col, value := range row {
			cell, cellErr := excelize.CoordinatesToCellName(col+1, i+2)
			if cellErr != nil {
				return nil, fmt.Errorf("failed to resolve cell: %w", cellErr)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	return f, nil
}

// WriteWorkbook streams the workbook form of the log.
func (s *Service) WriteWorkbook(w io.Writer, log *chronicle.Log) error {
	f, err := s.Workbook(log)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (s *Service) row(v *chronicle.Version) ([]string, error) {
	changes, err := s.tracker.Changeset(v)
	if err != nil {
		return nil, fmt.Errorf("failed to decode changeset of version %d: %w", v.ID, err)
	}

	itemID := ""
	if v.ItemID != nil {
		itemID = *v.ItemID
	}
	whodunnit := ""
	if v.Whodunnit != nil {
		whodunnit = *v.Whodunnit
	}
	transactionID := ""
	if v.TransactionID != nil {
		transactionID = v.TransactionID.String()
	}

	return []string{
		strconv.FormatInt(v.ID, 10),
		string(v.Event),
		v.ItemType,
		itemID,
		whodunnit,
		transactionID,
		v.CreatedAt.UTC().Format(time.RFC3339Nano),
		summarize(changes),
	}, nil
}

// summarize flattens a changeset into "name: old -> new" pairs in key
// order.
func summarize(changes chronicle.Changeset) string {
	parts := make([]string, 0, len(changes))
	for _, key := range changes.Keys() {
		parts = append(parts, fmt.Sprintf("%s: %v -> %v", key, changes.Old(key), changes.New(key)))
	}
	return strings.Join(parts, "; ")
}
