package pattern

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common errors for pattern store operations.
var (
	ErrNotFound         = errors.New("pattern not found")
	ErrDuplicateID      = errors.New("pattern id already exists")
	ErrInvalidPattern   = errors.New("invalid pattern")
	ErrEmptyCodeExample = errors.New("pattern code example cannot be empty")
	ErrInvalidType      = errors.New("unknown pattern type")
	ErrInvalidRange     = errors.New("effectiveness must be between 0.0 and 1.0")
)

// PlaceholderCode is the sentinel used by upstream collectors when no code
// example was captured. Records carrying it are rejected at the store boundary.
const PlaceholderCode = "// No code example provided"

// Type classifies what kind of transformation a pattern captures.
type Type string

const (
	TypeRefactoring     Type = "refactoring"
	TypeOptimization    Type = "optimization"
	TypeSecurity        Type = "security"
	TypePerformance     Type = "performance"
	TypeReadability     Type = "readability"
	TypeGeneral         Type = "general"
	TypeIssuePrevention Type = "issue-prevention"
	TypeImprovement     Type = "improvement"
)

// Valid reports whether t is one of the known pattern types.
func (t Type) Valid() bool {
	switch t {
	case TypeRefactoring, TypeOptimization, TypeSecurity, TypePerformance,
		TypeReadability, TypeGeneral, TypeIssuePrevention, TypeImprovement:
		return true
	}
	return false
}

// Complexity describes how a transformation changed code size.
type Complexity string

const (
	ComplexitySimplified Complexity = "simplified"
	ComplexitySimilar    Complexity = "similar"
	ComplexityExpanded   Complexity = "expanded"
)

// Context captures where a pattern was observed.
type Context struct {
	Language     string   `json:"language,omitempty"`
	Framework    string   `json:"framework,omitempty"`
	ProjectType  string   `json:"project_type,omitempty"`
	Architecture string   `json:"architecture,omitempty"`
	Directory    string   `json:"directory,omitempty"`
	FileType     string   `json:"file_type,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// CodeExample is the before/after pair a pattern remembers.
type CodeExample struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// Metadata carries derived classification data used for similarity scoring.
type Metadata struct {
	Language     string     `json:"language,omitempty"`
	Framework    string     `json:"framework,omitempty"`
	Complexity   Complexity `json:"complexity,omitempty"`
	LinesChanged int        `json:"lines_changed,omitempty"`

	// ParentID links a pattern spawned from "modified" feedback back to
	// the record it superseded.
	ParentID string `json:"parent_id,omitempty"`
}

// Pattern is a stored code-transformation example with trust metadata.
//
// Effectiveness is a 0.0-1.0 score estimating how beneficial the pattern
// has been; it is adjusted by the feedback processor as accept/reject/rate
// events arrive. SuccessRate is the exact fraction of recorded outcomes
// that were successes, recomputed (not drifted) on every feedback event.
type Pattern struct {
	ID       string      `json:"id"`
	Type     Type        `json:"type"`
	Category string      `json:"category,omitempty"`
	Tags     []string    `json:"tags,omitempty"`
	Context  Context     `json:"context"`
	Code     CodeExample `json:"code_example"`
	Metadata Metadata    `json:"metadata"`

	Effectiveness float64 `json:"effectiveness"`
	UsageCount    int     `json:"usage_count"`

	// SuccessScore accumulates recorded outcomes: 1.0 per success, 0.0 per
	// failure, 0.5 per partial (modified) outcome. SuccessRate is always
	// SuccessScore/UsageCount, recomputed on every event so it cannot drift.
	SuccessScore float64 `json:"success_score"`
	SuccessRate  float64 `json:"success_rate"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	LastUsed  time.Time `json:"last_used,omitempty"`
}

// ValidationError reports a malformed pattern or feedback shape.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// New creates a pattern with a generated ID and initialized timestamps.
// The record still has to pass Validate before it can be stored.
func New(typ Type, before, after string) *Pattern {
	now := time.Now()
	return &Pattern{
		ID:        uuid.New().String(),
		Type:      typ,
		Code:      CodeExample{Before: before, After: after},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the invariants a record must satisfy to enter the store.
func (p *Pattern) Validate() error {
	if p == nil {
		return ErrInvalidPattern
	}
	if !p.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, p.Type)
	}
	if p.Effectiveness < 0.0 || p.Effectiveness > 1.0 {
		return ErrInvalidRange
	}
	if p.SuccessRate < 0.0 || p.SuccessRate > 1.0 {
		return &ValidationError{Field: "success_rate", Reason: "must be between 0.0 and 1.0"}
	}
	if p.UsageCount < 0 {
		return &ValidationError{Field: "usage_count", Reason: "cannot be negative"}
	}
	if p.Code.Before == "" || p.Code.After == "" {
		return ErrEmptyCodeExample
	}
	if p.Code.Before == PlaceholderCode || p.Code.After == PlaceholderCode {
		return fmt.Errorf("%w: placeholder code example", ErrInvalidPattern)
	}
	return nil
}

// Normalize fills defaults a caller may omit: ID, type, timestamps.
func (p *Pattern) Normalize() {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Type == "" {
		p.Type = TypeGeneral
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
}

// RecordOutcome folds one usage outcome into the exact success counters.
// SuccessRate always equals SuccessScore/UsageCount afterwards.
func (p *Pattern) RecordOutcome(success bool) {
	p.UsageCount++
	if success {
		p.SuccessScore += 1.0
	}
	p.SuccessRate = p.SuccessScore / float64(p.UsageCount)
}

// RecordPartialOutcome records half a success, used when a suggestion was
// kept but needed modification. The rate is pulled toward 0.5 while the
// exact SuccessScore/UsageCount relationship is preserved.
func (p *Pattern) RecordPartialOutcome() {
	p.UsageCount++
	p.SuccessScore += 0.5
	p.SuccessRate = p.SuccessScore / float64(p.UsageCount)
}

// Clone returns a deep copy so callers can mutate without aliasing the store.
func (p *Pattern) Clone() *Pattern {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Tags = append([]string(nil), p.Tags...)
	cp.Context.Dependencies = append([]string(nil), p.Context.Dependencies...)
	return &cp
}
