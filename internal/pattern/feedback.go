package pattern

import (
	"errors"
	"time"
)

// Feedback validation errors.
var (
	ErrInvalidAction   = errors.New("unknown feedback action")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrMissingModified = errors.New("modified feedback requires a result")
)

// Action discriminates the feedback variants.
type Action string

const (
	ActionAccepted Action = "accepted"
	ActionRejected Action = "rejected"
	ActionModified Action = "modified"
	ActionRated    Action = "rated"
)

// Modification carries the payload of a "modified" feedback event: the code
// the user actually applied, and optionally why they changed the suggestion.
type Modification struct {
	Result string `json:"result"`
	Reason string `json:"reason,omitempty"`
}

// Feedback is one feedback event about a pattern suggestion.
//
// Rating is only meaningful for ActionRated (1-5). Modification is only
// meaningful for ActionModified. Both are validated before dispatch.
type Feedback struct {
	PatternID    string        `json:"pattern_id"`
	Action       Action        `json:"action"`
	Rating       int           `json:"rating,omitempty"`
	Modification *Modification `json:"modification,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Validate checks the shape of a feedback event against its action variant.
func (f *Feedback) Validate() error {
	switch f.Action {
	case ActionAccepted, ActionRejected:
		return nil
	case ActionRated:
		if f.Rating < 1 || f.Rating > 5 {
			return ErrInvalidRating
		}
		return nil
	case ActionModified:
		if f.Modification == nil || f.Modification.Result == "" {
			return ErrMissingModified
		}
		return nil
	default:
		return ErrInvalidAction
	}
}

// Positive reports whether this event counts as positive feedback for
// trend analysis: accepted, or rated 3 and above.
func (f *Feedback) Positive() bool {
	switch f.Action {
	case ActionAccepted:
		return true
	case ActionRated:
		return f.Rating >= 3
	}
	return false
}

// Negative reports whether this event counts as negative feedback:
// rejected, or rated below 3. Modified events are neutral.
func (f *Feedback) Negative() bool {
	switch f.Action {
	case ActionRejected:
		return true
	case ActionRated:
		return f.Rating < 3
	}
	return false
}
