package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "uq_entity_versions_identity_version"}
	wrapped := fmt.Errorf("failed to append: %w", pgErr)
	if !isUniqueViolation(wrapped) {
		t.Fatal("expected wrapped 23505 to be detected")
	}

	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("foreign key violation must not count as a version conflict")
	}
	if isUniqueViolation(errors.New("connection reset")) {
		t.Fatal("plain error must not count as a version conflict")
	}
}

func TestBuildChanger(t *testing.T) {
	changer := buildChanger(
		pgtype.Text{String: "user", Valid: true},
		pgtype.Text{String: "u-1", Valid: true},
	)
	if changer == nil || changer.Kind != "user" || changer.ID != "u-1" {
		t.Fatalf("unexpected changer: %+v", changer)
	}

	if changer := buildChanger(pgtype.Text{}, pgtype.Text{}); changer != nil {
		t.Fatalf("expected nil changer for null columns, got %+v", changer)
	}
}
