package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/trending-crawler/internal/checkpoint"
	"github.com/JakeFAU/trending-crawler/internal/crawler"
	"github.com/JakeFAU/trending-crawler/internal/hash/sha256"
)

func TestCheckpointStoreGetReturnsDocument(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewCheckpointStoreWithPool(mock, "checkpoints", "trending")
	require.NoError(t, err)

	doc := []byte(`{"fingerprint":"abc","all_jobs":["u1"],"completed":[]}`)
	mock.ExpectQuery("SELECT document FROM checkpoints").
		WithArgs("trending").
		WillReturnRows(pgxmock.NewRows([]string{"document"}).AddRow(doc))

	got, err := store.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, doc, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStoreGetMapsNoRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewCheckpointStoreWithPool(mock, "", "")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT document FROM checkpoints").
		WithArgs("default").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.Get(context.Background())
	require.ErrorIs(t, err, checkpoint.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStorePutUpserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewCheckpointStoreWithPool(mock, "checkpoints", "trending")
	require.NoError(t, err)

	doc := []byte(`{"fingerprint":"abc"}`)
	mock.ExpectExec("INSERT INTO checkpoints").
		WithArgs("trending", doc).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Put(context.Background(), doc))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStorePutWrapsErrors(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewCheckpointStoreWithPool(mock, "checkpoints", "trending")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO checkpoints").
		WithArgs("trending", pgxmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	err = store.Put(context.Background(), []byte(`{}`))
	require.EqualError(t, err, "upsert checkpoint: db down")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStoreEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewCheckpointStoreWithPool(mock, "crawl_checkpoints", "trending")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS crawl_checkpoints").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckpointStoreRejectsInvalidTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewCheckpointStoreWithPool(mock, "bad;table", "trending")
	require.Error(t, err)
}

// TestCheckpointStoreBacksStoreLoad runs the checkpoint reset rules over the Postgres backend.
func TestCheckpointStoreBacksStoreLoad(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	backend, err := NewCheckpointStoreWithPool(mock, "checkpoints", "trending")
	require.NoError(t, err)
	store := checkpoint.NewStore(backend, sha256.New(), zap.NewNop())

	jobs := []crawler.JobID{"u1", "u2"}
	fp, err := sha256.Fingerprint(sha256.New(), jobs)
	require.NoError(t, err)
	doc := []byte(`{"fingerprint":"` + fp + `","all_jobs":["u1","u2"],"completed":["u1"]}`)
	mock.ExpectQuery("SELECT document FROM checkpoints").
		WithArgs("trending").
		WillReturnRows(pgxmock.NewRows([]string{"document"}).AddRow(doc))

	state, pending, err := store.Load(context.Background(), jobs)
	require.NoError(t, err)
	require.Equal(t, []crawler.JobID{"u1"}, state.Completed)
	require.Equal(t, []crawler.JobID{"u2"}, pending)
	require.NoError(t, mock.ExpectationsWereMet())
}
