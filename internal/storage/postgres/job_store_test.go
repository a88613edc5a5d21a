package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

func TestCreateJobInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	job := pipeline.Job{
		ID:        "job-uuid",
		URL:       "https://shop.example.com",
		Status:    pipeline.JobStatusQueued,
		Submitted: now,
	}

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(job.ID, job.URL, "queued", now, mustJSON(t, job.Stats), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateJob(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRunningMissingJob(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE jobs SET status").
		WithArgs("missing", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.MarkRunning(context.Background(), "missing", time.Now().UTC())
	assert.ErrorIs(t, err, pipeline.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeJobWritesStats(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000600, 0).UTC()
	stats := pipeline.JobStats{PagesCrawled: 12, ProductsFound: 5, ProductsStored: 5, Errors: 2}

	mock.ExpectExec("UPDATE jobs SET status").
		WithArgs("job-uuid", "success", mustJSON(t, stats), "", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.FinalizeJob(context.Background(), "job-uuid", pipeline.JobStatusSuccess, stats, "", now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobScansRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock)
	require.NoError(t, err)

	submitted := time.Unix(1700000000, 0).UTC()
	started := submitted.Add(time.Second)

	mock.ExpectQuery("SELECT id, url, status").
		WithArgs("job-uuid").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "url", "status", "submitted_at", "started_at", "finished_at", "stats", "error_message",
		}).AddRow(
			"job-uuid", "https://shop.example.com", "running", submitted,
			&started, (*time.Time)(nil), []byte(`{"pages_crawled":3}`), "",
		))

	job, err := store.GetJob(context.Background(), "job-uuid")
	require.NoError(t, err)
	assert.Equal(t, pipeline.JobStatusRunning, job.Status)
	assert.Equal(t, 3, job.Stats.PagesCrawled)
	require.NotNil(t, job.Started)
	assert.Nil(t, job.Finished)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, url, status").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, pipeline.ErrJobNotFound)
}
