package export

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/versioned/internal/domain"
	"github.com/rpattn/versioned/internal/repository"
)

const historySheet = "History"

// Service renders an entity's version history as a spreadsheet workbook.
type Service struct {
	store repository.VersionStore
}

// NewService creates an export service over the given version store.
func NewService(store repository.VersionStore) *Service {
	return &Service{store: store}
}

// HistoryWorkbook builds an xlsx workbook with one row per version and one
// column per field name seen anywhere in the entity's history. Composite
// values are serialized as JSON text.
func (s *Service) HistoryWorkbook(ctx context.Context, entity domain.Ref) (*excelize.File, error) {
	records, err := s.store.List(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", entity, err)
	}

	fields := collectFieldNames(records)
	headers := append([]string{"Version", "Created At", "Changer Kind", "Changer ID"}, fields...)

	f := excelize.NewFile()
	f.SetSheetName("Sheet1", historySheet)

	for col, header := range headers {
		if err := setCell(f, col+1, 1, header); err != nil {
			return nil, err
		}
	}

	for i, record := range records {
		row := i + 2
		cells := []any{
			record.Version,
			record.CreatedAt.Format(time.RFC3339),
			changerPart(record.Changer, func(r domain.Ref) string { return r.Kind }),
			changerPart(record.Changer, func(r domain.Ref) string { return r.ID }),
		}
		for _, field := range fields {
			cells = append(cells, cellValue(record.Snapshot[field]))
		}
		for col, value := range cells {
			if err := setCell(f, col+1, row, value); err != nil {
				return nil, err
			}
		}
	}

	return f, nil
}

func collectFieldNames(records []domain.VersionRecord) []string {
	seen := map[string]struct{}{}
	for _, record := range records {
		for field := range record.Snapshot {
			seen[field] = struct{}{}
		}
	}

	fields := make([]string, 0, len(seen))
	for field := range seen {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func changerPart(changer *domain.Ref, part func(domain.Ref) string) string {
	if changer == nil {
		return ""
	}
	return part(*changer)
}

// cellValue flattens a snapshot value into something a cell can hold.
func cellValue(value any) any {
	switch value.(type) {
	case nil:
		return ""
	case string, bool, float64, int, int64:
		return value
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}

func setCell(f *excelize.File, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("failed to compute cell name: %w", err)
	}
	if err := f.SetCellValue(historySheet, cell, value); err != nil {
		return fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
	return nil
}
