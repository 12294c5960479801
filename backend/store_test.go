package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nexlate/tracker/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockStore(t *testing.T, driver string) (*SQLStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLStore(db, driver, zap.NewNop())
	require.NoError(t, err)
	return store, mock
}

func TestNewSQLStoreRejectsUnknownDriver(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLStore(db, "mysql", zap.NewNop())
	assert.Error(t, err)
}

func TestMigrateCreatesTable(t *testing.T) {
	store, mock := newMockStore(t, "sqlite3")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS lates").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestAllNewestFirstWithLimit(t *testing.T) {
	store, mock := newMockStore(t, "sqlite3")

	rows := sqlmock.NewRows([]string{"date", "minutes_late", "excuse"}).
		AddRow("6/2/2023", 3, "bus").
		AddRow("5/2/2023", 15, nil)

	mock.ExpectQuery("SELECT date, minutes_late, excuse FROM lates ORDER BY rowid DESC LIMIT \\?").
		WithArgs(2).
		WillReturnRows(rows)

	list, err := store.All(context.Background(), 2, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"6/2/2023", "5/2/2023"}, list.Dates())
	assert.Equal(t, "bus", list[0].ExcuseText())
	assert.Nil(t, list[1].Excuse)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestAllPostgresOldestFirst(t *testing.T) {
	store, mock := newMockStore(t, "postgres")

	mock.ExpectQuery("SELECT date, minutes_late, excuse FROM lates ORDER BY seq ASC$").
		WillReturnRows(sqlmock.NewRows([]string{"date", "minutes_late", "excuse"}))

	list, err := store.All(context.Background(), -1, false)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestGetMissingEntry(t *testing.T) {
	store, mock := newMockStore(t, "sqlite3")

	mock.ExpectQuery("SELECT date, minutes_late, excuse FROM lates WHERE date = \\?").
		WithArgs("1/1/2022").
		WillReturnRows(sqlmock.NewRows([]string{"date", "minutes_late", "excuse"}))

	_, err := store.Get(context.Background(), "1/1/2022")
	assert.True(t, errors.Is(err, ErrNotFound))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestCreateInsertsInTransaction(t *testing.T) {
	store, mock := newMockStore(t, "postgres")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT date, minutes_late, excuse FROM lates WHERE date = \\$1").
		WithArgs("5/2/2023").
		WillReturnRows(sqlmock.NewRows([]string{"date", "minutes_late", "excuse"}))
	mock.ExpectExec("INSERT INTO lates \\(date, minutes_late, excuse\\) VALUES \\(\\$1, \\$2, \\$3\\)").
		WithArgs("5/2/2023", 10, "traffic").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.Create(context.Background(), models.LateEntry{Date: "5/2/2023", MinutesLate: 10, Excuse: models.String("traffic")})
	require.NoError(t, err)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestCreateExistingEntryRollsBack(t *testing.T) {
	store, mock := newMockStore(t, "sqlite3")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT date, minutes_late, excuse FROM lates WHERE date = \\?").
		WithArgs("5/2/2023").
		WillReturnRows(sqlmock.NewRows([]string{"date", "minutes_late", "excuse"}).AddRow("5/2/2023", 1, nil))
	mock.ExpectRollback()

	err := store.Create(context.Background(), models.LateEntry{Date: "5/2/2023", MinutesLate: 10})
	assert.True(t, errors.Is(err, ErrExists))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestUpdateReinsertsMergedEntry(t *testing.T) {
	store, mock := newMockStore(t, "sqlite3")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT date, minutes_late, excuse FROM lates WHERE date = \\?").
		WithArgs("5/2/2023").
		WillReturnRows(sqlmock.NewRows([]string{"date", "minutes_late", "excuse"}).AddRow("5/2/2023", 1, "alarm"))
	mock.ExpectExec("DELETE FROM lates WHERE date = \\?").
		WithArgs("5/2/2023").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO lates").
		WithArgs("5/2/2023", 30, "alarm").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	minutes := 30
	entry, err := store.Update(context.Background(), "5/2/2023", &minutes, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, entry.MinutesLate)
	assert.Equal(t, "alarm", entry.ExcuseText())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestDeleteMissingEntry(t *testing.T) {
	store, mock := newMockStore(t, "sqlite3")

	mock.ExpectExec("DELETE FROM lates WHERE date = \\?").
		WithArgs("1/1/2022").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Delete(context.Background(), "1/1/2022")
	assert.True(t, errors.Is(err, ErrNotFound))

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Create(ctx, models.LateEntry{Date: "1/1/2023", MinutesLate: 1}))
	assert.True(t, errors.Is(store.Create(ctx, models.LateEntry{Date: "1/1/2023"}), ErrExists))

	excuse := "fog"
	entry, err := store.Update(ctx, "1/1/2023", nil, &excuse)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.MinutesLate)
	assert.Equal(t, "fog", entry.ExcuseText())

	require.NoError(t, store.Delete(ctx, "1/1/2023"))
	assert.True(t, errors.Is(store.Delete(ctx, "1/1/2023"), ErrNotFound))

	_, err = store.Update(ctx, "1/1/2023", nil, nil)
	assert.True(t, errors.Is(err, ErrNotFound))

	list, err := store.All(ctx, -1, true)
	require.NoError(t, err)
	assert.Empty(t, list)
}
