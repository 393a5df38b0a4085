package async

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/teranos/newsdesk/errors"
)

// Store persists jobs in pulse_jobs.
//
// Every status change is a compare-and-set on the current status and every
// progress write is an increment guarded by status = 'processing', so a
// transition made by one writer is never overwritten by another.
type Store struct {
	db *sql.DB
}

// NewStore creates a new job store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateJob inserts a new job
func (s *Store) CreateJob(job *Job) error {
	itemIDs, err := json.Marshal(nonNil(job.ItemIDs))
	if err != nil {
		return errors.Wrap(err, "failed to encode item ids")
	}

	query := `
		INSERT INTO pulse_jobs (
			id, operation_type, item_ids, total_items,
			processed_items, successful_items, failed_items,
			status, created_by, last_error,
			created_at, started_at, completed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		job.ID, job.OperationType, string(itemIDs), job.TotalItems,
		job.ProcessedItems, job.SuccessfulItems, job.FailedItems,
		job.Status, job.CreatedBy, nullString(job.LastError),
		job.CreatedAt.UTC(), nullTime(job.StartedAt), nullTime(job.CompletedAt), job.UpdatedAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create job")
	}
	return nil
}

// GetJob retrieves a job by ID, including its item list
func (s *Store) GetJob(id string) (*Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM pulse_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WrapAs(ErrJobNotFound, errors.ErrNotFound, "job %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}
	return job, nil
}

// ClaimNext moves the oldest queued job to processing and returns it.
// Returns nil when nothing is queued. started_at is stamped only on the first claim.
func (s *Store) ClaimNext() (*Job, error) {
	const maxAttempts = 5

	for attempt := 0; attempt < maxAttempts; attempt++ {
		var id string
		err := s.db.QueryRow(`
			SELECT id FROM pulse_jobs
			WHERE status = 'queued'
			ORDER BY created_at ASC, id ASC
			LIMIT 1`).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to find queued job")
		}

		now := time.Now().UTC()
		claimed, err := s.transition(`
			UPDATE pulse_jobs
			SET status = 'processing',
			    started_at = COALESCE(started_at, ?),
			    updated_at = ?
			WHERE id = ? AND status = 'queued'`, now, now, id)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to claim job %s", id)
		}
		if !claimed {
			// another worker won the race; look again
			continue
		}
		return s.GetJob(id)
	}
	return nil, nil
}

// Checkpoint adds a batch tally to the job's counters.
// Returns false when the job is no longer processing; nothing is written then.
func (s *Store) Checkpoint(id string, tally Tally) (bool, error) {
	applied, err := s.transition(`
		UPDATE pulse_jobs
		SET processed_items = processed_items + ?,
		    successful_items = successful_items + ?,
		    failed_items = failed_items + ?,
		    last_error = COALESCE(?, last_error),
		    updated_at = ?
		WHERE id = ? AND status = 'processing'`,
		tally.Processed(), tally.Successful, tally.Failed,
		nullString(tally.LastError), time.Now().UTC(), id)
	if err != nil {
		return false, errors.Wrapf(err, "failed to checkpoint job %s", id)
	}
	return applied, nil
}

// Complete moves a processing job to completed
func (s *Store) Complete(id string) (bool, error) {
	now := time.Now().UTC()
	applied, err := s.transition(`
		UPDATE pulse_jobs
		SET status = 'completed', completed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'`, now, now, id)
	return applied, errors.Wrapf(err, "failed to complete job %s", id)
}

// Fail moves a queued or processing job to failed, recording reason as last_error
func (s *Store) Fail(id string, reason string) (bool, error) {
	now := time.Now().UTC()
	applied, err := s.transition(`
		UPDATE pulse_jobs
		SET status = 'failed', last_error = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status IN ('queued', 'processing')`, nullString(reason), now, now, id)
	return applied, errors.Wrapf(err, "failed to fail job %s", id)
}

// Cancel moves a queued or processing job to cancelled.
// Returns false for jobs already terminal.
func (s *Store) Cancel(id string) (bool, error) {
	now := time.Now().UTC()
	applied, err := s.transition(`
		UPDATE pulse_jobs
		SET status = 'cancelled', completed_at = ?, updated_at = ?
		WHERE id = ? AND status IN ('queued', 'processing')`, now, now, id)
	return applied, errors.Wrapf(err, "failed to cancel job %s", id)
}

// Requeue moves a processing job back to queued so it can be claimed again
func (s *Store) Requeue(id string) (bool, error) {
	applied, err := s.transition(`
		UPDATE pulse_jobs
		SET status = 'queued', updated_at = ?
		WHERE id = ? AND status = 'processing'`, time.Now().UTC(), id)
	return applied, errors.Wrapf(err, "failed to requeue job %s", id)
}

// ListJobs returns jobs newest first without their item lists, optionally filtered by status
func (s *Store) ListJobs(status *JobStatus, limit int) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)
	base := `SELECT ` + summaryColumns + ` FROM pulse_jobs`
	if status != nil {
		rows, err = s.db.Query(base+` WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT ?`, *status, limit)
	} else {
		rows, err = s.db.Query(base+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "jobs")
}

// ListActiveJobs returns queued and processing jobs, oldest first
func (s *Store) ListActiveJobs(limit int) ([]*Job, error) {
	rows, err := s.db.Query(`SELECT `+summaryColumns+`
		FROM pulse_jobs
		WHERE status IN ('queued', 'processing')
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "active jobs")
}

// CountByStatus returns the number of jobs in each status
func (s *Store) CountByStatus() (map[JobStatus]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM pulse_jobs GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count jobs")
	}
	defer rows.Close()

	counts := make(map[JobStatus]int)
	for rows.Next() {
		var status JobStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan job count")
		}
		counts[status] = n
	}
	return counts, errors.Wrap(rows.Err(), "error iterating job counts")
}

// transition runs a conditional update and reports whether a row changed
func (s *Store) transition(query string, args ...any) (bool, error) {
	result, err := s.db.Exec(query, args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return n > 0, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
