package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryStore_AppendAndList(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	uid, err := NewUserRepository(db).Create(ctx, "alice", "h")
	require.NoError(t, err)

	store := NewHistoryStore(db)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	step := 0
	store.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	_, err = store.Append(ctx, uid, 1, 20, 8, 3)
	require.NoError(t, err)
	_, err = store.Append(ctx, uid, 990, 1000, 2, 1)
	require.NoError(t, err)

	recs, err := store.ListRecent(ctx, uid)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// Новые первыми.
	assert.Equal(t, 990, recs[0].N1)
	assert.Equal(t, 1000, recs[0].N2)
	assert.Equal(t, 2, recs[0].PrimesCount)
	assert.Equal(t, int64(1), recs[0].ExecutionTimeMs)
	assert.True(t, recs[0].SearchTime.Equal(base.Add(2*time.Minute)), "got %v", recs[0].SearchTime)
	assert.Equal(t, uid, recs[0].UserID)

	assert.Equal(t, 1, recs[1].N1)
	assert.Equal(t, int64(3), recs[1].ExecutionTimeMs)
}

func TestHistoryStore_ListEmptyAndIsolated(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	alice, _ := users.Create(ctx, "alice", "h")
	bob, _ := users.Create(ctx, "bob", "h")

	store := NewHistoryStore(db)
	_, err := store.Append(ctx, alice, 1, 10, 4, 1)
	require.NoError(t, err)

	recs, err := store.ListRecent(ctx, bob)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestHistoryStore_ListCappedAt50(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	uid, _ := NewUserRepository(db).Create(ctx, "alice", "h")

	store := NewHistoryStore(db)
	for i := 1; i <= HistoryLimit+5; i++ {
		_, err := store.Append(ctx, uid, i, i+10, 1, 1)
		require.NoError(t, err)
	}

	recs, err := store.ListRecent(ctx, uid)
	require.NoError(t, err)
	assert.Len(t, recs, HistoryLimit)
	assert.Equal(t, HistoryLimit+5, recs[0].N1, "первой идёт последняя запись")
}

func TestHistoryStore_DeleteAllIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	uid, _ := NewUserRepository(db).Create(ctx, "alice", "h")

	store := NewHistoryStore(db)
	for i := 0; i < 3; i++ {
		_, err := store.Append(ctx, uid, 1, 10, 4, 1)
		require.NoError(t, err)
	}

	n, err := store.DeleteAll(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = store.DeleteAll(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	recs, err := store.ListRecent(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestHistoryStore_AppendUnknownUser(t *testing.T) {
	db := openTestDB(t)
	_, err := NewHistoryStore(db).Append(context.Background(), 12345, 1, 10, 4, 1)
	assert.Error(t, err, "внешний ключ на users(id)")
}

func TestHistoryStore_RejectsInvalidRange(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	uid, _ := NewUserRepository(db).Create(ctx, "alice", "h")

	_, err := NewHistoryStore(db).Append(ctx, uid, 10, 10, 1, 1)
	assert.Error(t, err, "CHECK n1 < n2")
}

func TestHistoryStore_DriverErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewHistoryStore(db)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO search_history`).WillReturnError(errors.New("disk I/O error"))
	_, err = store.Append(ctx, 1, 1, 10, 4, 1)
	assert.ErrorContains(t, err, "disk I/O error")

	mock.ExpectQuery(`SELECT id, user_id, n1, n2`).WithArgs(int64(1), HistoryLimit).WillReturnError(errors.New("locked"))
	_, err = store.ListRecent(ctx, 1)
	assert.ErrorContains(t, err, "locked")

	mock.ExpectExec(`DELETE FROM search_history WHERE user_id = \?`).WithArgs(int64(1)).WillReturnError(errors.New("readonly"))
	_, err = store.DeleteAll(ctx, 1)
	assert.ErrorContains(t, err, "readonly")

	assert.NoError(t, mock.ExpectationsWereMet())
}
