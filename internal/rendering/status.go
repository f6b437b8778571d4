package rendering

import (
	"errors"
	"fmt"
)

// State is a render job's lifecycle state as reported by the service.
type State string

const (
	StatePending  State = "pending"
	StateProgress State = "progress"
	StateFinished State = "finished"
	StateFailed   State = "failed"
)

// ErrUnexpectedState marks a state string outside the job protocol. This is
// a protocol violation, not a render failure.
var ErrUnexpectedState = errors.New("rendering: unexpected render state")

// Status is the normalized result of one render_status poll.
type Status struct {
	State State `json:"state"`
	// Progress is the percentage reported by the backend. It is not
	// guaranteed to be monotonic across polls.
	Progress float64 `json:"progress"`
	// ProgressText is Progress formatted for display.
	ProgressText string `json:"progress_text"`
	// StatusText is the backend's free-form description of the current
	// step, e.g. "rendering".
	StatusText string `json:"status_text,omitempty"`
	// Article and Page detail which piece of the book is being worked on.
	Article string  `json:"article,omitempty"`
	Page    float64 `json:"page,omitempty"`
	// IsCached is set on finished jobs served from the backend's own
	// cache; a force render will rebuild them.
	IsCached bool `json:"is_cached,omitempty"`
	// Download descriptors, present once finished.
	URL                string `json:"url,omitempty"`
	ContentType        string `json:"content_type,omitempty"`
	ContentLength      string `json:"content_length,omitempty"`
	ContentDisposition string `json:"content_disposition,omitempty"`
}

// StatusFromResult interprets a render_status response.
func StatusFromResult(r *APIResult) (*Status, error) {
	state := State(r.Get("state"))
	switch state {
	case StatePending, StateProgress, StateFinished, StateFailed:
	default:
		return nil, fmt.Errorf("%w %q", ErrUnexpectedState, string(state))
	}
	status := &Status{
		State:              state,
		Progress:           r.GetFloat("status", "progress"),
		StatusText:         r.Get("status", "status"),
		Article:            r.Get("status", "article"),
		Page:               r.GetFloat("status", "page"),
		IsCached:           r.Get("is_cached") != "",
		URL:                r.Get("url"),
		ContentType:        r.Get("content_type"),
		ContentLength:      r.Get("content_length"),
		ContentDisposition: r.Get("content_disposition"),
	}
	status.ProgressText = fmt.Sprintf("%.2f", status.Progress)
	return status, nil
}
