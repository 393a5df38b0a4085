package async

import (
	"database/sql"
	"encoding/json"

	"github.com/teranos/newsdesk/errors"
)

// jobColumns is the column list every job SELECT uses, in scan order
const jobColumns = `id, operation_type, item_ids, total_items,
		processed_items, successful_items, failed_items,
		status, created_by, last_error,
		created_at, started_at, completed_at, updated_at`

// summaryColumns selects the same shape with an empty item list
const summaryColumns = `id, operation_type, '[]', total_items,
		processed_items, successful_items, failed_items,
		status, created_by, last_error,
		created_at, started_at, completed_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob reads one row selected with jobColumns or summaryColumns
func scanJob(row rowScanner) (*Job, error) {
	var (
		job         Job
		itemIDs     string
		lastError   sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&job.ID, &job.OperationType, &itemIDs, &job.TotalItems,
		&job.ProcessedItems, &job.SuccessfulItems, &job.FailedItems,
		&job.Status, &job.CreatedBy, &lastError,
		&job.CreatedAt, &startedAt, &completedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(itemIDs), &job.ItemIDs); err != nil {
		return nil, errors.Wrapf(err, "failed to decode item ids for job %s", job.ID)
	}
	if len(job.ItemIDs) == 0 {
		job.ItemIDs = nil
	}
	if lastError.Valid {
		job.LastError = lastError.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func scanJobs(rows *sql.Rows, what string) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to scan %s", what)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "error iterating %s", what)
	}
	return jobs, nil
}
