package ingest

import (
	"time"

	"github.com/bryan-buckman/techpulse/internal/rss"
)

// Status is the outcome of one source within a run.
type Status string

// Source outcomes.
const (
	StatusOK          Status = "ok"
	StatusFetchFailed Status = "fetch_failed"
	StatusParseFailed Status = "parse_failed"
	StatusEmpty       Status = "empty"
	StatusStampFailed Status = "stamp_failed"
	StatusCanceled    Status = "canceled"
)

// failed reports whether the status counts against SourcesFailed.
func (s Status) failed() bool {
	switch s {
	case StatusFetchFailed, StatusParseFailed, StatusStampFailed:
		return true
	}
	return false
}

// Counts are entry-level counters.
type Counts struct {
	Seen    int `json:"seen"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

func (c *Counts) add(o Counts) {
	c.Seen += o.Seen
	c.Created += o.Created
	c.Updated += o.Updated
	c.Skipped += o.Skipped
}

// SourceResult describes what happened to one source.
type SourceResult struct {
	SourceID   int64         `json:"source_id"`
	Source     string        `json:"source"`
	Status     Status        `json:"status"`
	ErrorKind  rss.ErrorKind `json:"error_kind,omitempty"`
	HTTPStatus int           `json:"http_status,omitempty"`
	Error      string        `json:"error,omitempty"`
	Malformed  bool          `json:"malformed,omitempty"`
	Counts
}

// Summary is the outcome of a run.
type Summary struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Sources    []SourceResult `json:"sources"`
	Totals     Counts         `json:"totals"`

	SourcesOK      int `json:"sources_ok"`
	SourcesFailed  int `json:"sources_failed"`
	SourcesSkipped int `json:"sources_skipped"`
}

func (s *Summary) merge(r SourceResult) {
	s.Totals.add(r.Counts)
	switch {
	case r.Status == StatusOK:
		s.SourcesOK++
	case r.Status.failed():
		s.SourcesFailed++
	default:
		s.SourcesSkipped++
	}
}
