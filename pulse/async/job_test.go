package async

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	ids := []string{"b", "a", "c"}
	job, err := NewJob(testOperation, ids, "editor@test")
	require.NoError(t, err)

	_, err = uuid.Parse(job.ID)
	assert.NoError(t, err, "job ids are UUIDs")
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, 3, job.TotalItems)
	assert.Equal(t, []string{"b", "a", "c"}, job.ItemIDs)
	assert.Nil(t, job.StartedAt)

	ids[0] = "changed"
	assert.Equal(t, "b", job.ItemIDs[0], "item list is copied")

	other, err := NewJob(testOperation, ids, "editor@test")
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, other.ID)
}

func TestNewJob_ZeroItemsIsCompleted(t *testing.T) {
	job, err := NewJob(testOperation, nil, "editor@test")
	require.NoError(t, err)

	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Zero(t, job.TotalItems)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, job.CreatedAt, *job.StartedAt)
	assert.Equal(t, job.CreatedAt, *job.CompletedAt)
	assert.Equal(t, float64(100), job.Percentage())
}

func TestNewJob_Validation(t *testing.T) {
	_, err := NewJob("", []string{"a"}, "editor@test")
	assert.Error(t, err)

	_, err = NewJob(testOperation, []string{"a"}, "")
	assert.Error(t, err)
}

func TestJobStatus(t *testing.T) {
	for _, s := range []JobStatus{JobStatusCompleted, JobStatusCancelled, JobStatusFailed} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []JobStatus{JobStatusQueued, JobStatusProcessing} {
		assert.False(t, s.IsTerminal(), s)
	}
	assert.True(t, IsValidStatus("processing"))
	assert.False(t, IsValidStatus("running"))
}

func TestRemainingAndPercentage(t *testing.T) {
	job := &Job{ItemIDs: itemIDs(7), TotalItems: 7, ProcessedItems: 3}
	assert.Equal(t, []string{"i-4", "i-5", "i-6", "i-7"}, job.Remaining())
	assert.InDelta(t, 42.86, job.Percentage(), 0.01)

	job.ProcessedItems = 7
	assert.Empty(t, job.Remaining())
}

func TestTally(t *testing.T) {
	var total Tally
	total.Add(Tally{Successful: 2, Failed: 1, LastError: "i-2: boom"})
	total.Add(Tally{Successful: 3})

	assert.Equal(t, 6, total.Processed())
	assert.Equal(t, "i-2: boom", total.LastError, "empty error does not clear the last one")
}

func TestItemErrorTruncates(t *testing.T) {
	long := make([]byte, 2*maxLastErrorLen)
	for i := range long {
		long[i] = 'x'
	}
	msg := itemError("i-1", assertErr(string(long)))
	assert.LessOrEqual(t, len(msg), maxLastErrorLen+len("…"))
	assert.Contains(t, msg, "i-1: ")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
