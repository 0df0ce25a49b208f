package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func setupUserStateMock(t *testing.T) (*PostgresUserStateRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresUserStateRepository(db)
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

func TestUserStateGet_Found(t *testing.T) {
	repo, mock, cleanup := setupUserStateMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM user_state WHERE username = $1 AND key = $2`)).
		WithArgs("bob", "userData").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"username":"bob"}`)))

	value, err := repo.Get(context.Background(), "bob", "userData")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(value) != `{"username":"bob"}` {
		t.Errorf("unexpected value: %s", value)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUserStateGet_Absent(t *testing.T) {
	repo, mock, cleanup := setupUserStateMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM user_state WHERE username = $1 AND key = $2`)).
		WithArgs("bob", "session").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	value, err := repo.Get(context.Background(), "bob", "session")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != nil {
		t.Errorf("expected nil for absent document, got %s", value)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUserStateGet_Error(t *testing.T) {
	repo, mock, cleanup := setupUserStateMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM user_state WHERE username = $1 AND key = $2`)).
		WithArgs("bob", "userData").
		WillReturnError(errors.New("query failed"))

	if _, err := repo.Get(context.Background(), "bob", "userData"); err == nil {
		t.Errorf("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUserStatePut_Upsert(t *testing.T) {
	repo, mock, cleanup := setupUserStateMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO user_state (username, key, value) VALUES ($1, $2, $3)`)).
		WithArgs("bob", "session", []byte(`{"token":"t"}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Put(context.Background(), "bob", "session", []byte(`{"token":"t"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUserStateDelete(t *testing.T) {
	repo, mock, cleanup := setupUserStateMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM user_state WHERE username = $1 AND key = $2`)).
		WithArgs("bob", "session").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "bob", "session"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
