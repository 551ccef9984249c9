package export

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/versioned/internal/domain"
	"github.com/rpattn/versioned/internal/repository"
)

type stubStore struct {
	records []domain.VersionRecord
}

func (s *stubStore) Append(ctx context.Context, record domain.VersionRecord) (domain.VersionRecord, error) {
	return domain.VersionRecord{}, nil
}

func (s *stubStore) MaxVersion(ctx context.Context, entity domain.Ref) (int64, error) {
	return 0, nil
}

func (s *stubStore) Get(ctx context.Context, entity domain.Ref, version int64) (*domain.VersionRecord, error) {
	return nil, nil
}

func (s *stubStore) Latest(ctx context.Context, entity domain.Ref) (*domain.VersionRecord, error) {
	return nil, nil
}

func (s *stubStore) List(ctx context.Context, entity domain.Ref) ([]domain.VersionRecord, error) {
	return s.records, nil
}

func (s *stubStore) WithTx(tx pgx.Tx) repository.VersionStore {
	return s
}

func TestHistoryWorkbookLayout(t *testing.T) {
	createdAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	store := &stubStore{records: []domain.VersionRecord{
		{
			Version:   1,
			CreatedAt: createdAt,
			Entity:    domain.Ref{Kind: "contact", ID: "c-1"},
			Changer:   &domain.Ref{Kind: "user", ID: "u-1"},
			Snapshot:  domain.Snapshot{"name": "Jane", "email": "john@x.com"},
		},
		{
			Version:   2,
			CreatedAt: createdAt.Add(time.Minute),
			Entity:    domain.Ref{Kind: "contact", ID: "c-1"},
			Snapshot:  domain.Snapshot{"name": "Jane", "email": "jane@x.com", "count": float64(2)},
		},
	}}

	service := NewService(store)
	workbook, err := service.HistoryWorkbook(context.Background(), domain.Ref{Kind: "contact", ID: "c-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expect := map[string]string{
		"A1": "Version",
		"B1": "Created At",
		"C1": "Changer Kind",
		"D1": "Changer ID",
		"E1": "count",
		"F1": "email",
		"G1": "name",
		"A2": "1",
		"C2": "user",
		"D2": "u-1",
		"F2": "john@x.com",
		"G2": "Jane",
		"A3": "2",
		"C3": "",
		"E3": "2",
		"F3": "jane@x.com",
	}
	for cell, want := range expect {
		got, err := workbook.GetCellValue(historySheet, cell)
		if err != nil {
			t.Fatalf("failed to read cell %s: %v", cell, err)
		}
		if got != want {
			t.Fatalf("cell %s: expected %q, got %q", cell, want, got)
		}
	}
}

func TestHistoryWorkbookEmptyHistory(t *testing.T) {
	service := NewService(&stubStore{})

	workbook, err := service.HistoryWorkbook(context.Background(), domain.Ref{Kind: "contact", ID: "c-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := workbook.GetCellValue(historySheet, "A1")
	if err != nil {
		t.Fatalf("failed to read header: %v", err)
	}
	if got != "Version" {
		t.Fatalf("expected header row even without records, got %q", got)
	}
}
