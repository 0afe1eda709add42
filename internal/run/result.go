package run

import "time"

// Status describes the terminal outcome of one item within one run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result records the outcome of processing a single item. Results are
// accumulated append-only within a run and never merged across runs.
type Result struct {
	SubjectID       string  `json:"subject_id"`
	Status          Status  `json:"status"`
	ArtifactRef     string  `json:"artifact_ref,omitempty"`
	Err             string  `json:"error,omitempty"`
	Timestamp       string  `json:"timestamp"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
}

// Success builds a success result for the given subject.
func Success(subjectID, artifactRef string) Result {
	return Result{
		SubjectID:   subjectID,
		Status:      StatusSuccess,
		ArtifactRef: artifactRef,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// Failed builds a failed result carrying the error message.
func Failed(subjectID string, err error) Result {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Result{
		SubjectID: subjectID,
		Status:    StatusFailed,
		Err:       msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Skipped builds a skipped result.
func Skipped(subjectID string) Result {
	return Result{
		SubjectID: subjectID,
		Status:    StatusSkipped,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// WithDuration returns a copy of the result stamped with an elapsed duration.
func (r Result) WithDuration(elapsed time.Duration) Result {
	r.DurationSeconds = elapsed.Seconds()
	return r
}
