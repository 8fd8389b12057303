package model

import (
	"fmt"
	"regexp"
	"time"
)

// ChangeKind is the recent-changes type of a revision pair
type ChangeKind string

const (
	ChangeEdit ChangeKind = "edit"
	ChangeNew  ChangeKind = "new"
)

var entityIDPattern = regexp.MustCompile(`^[QPL][1-9][0-9]*$`)

// IsEntityID reports whether s looks like a Wikibase entity id (Q42, P31, L7)
func IsEntityID(s string) bool {
	return entityIDPattern.MatchString(s)
}

// RevisionPair identifies one unit of work: an entity and two of its revisions.
// OldRevID 0 means the entity did not exist before NewRevID.
type RevisionPair struct {
	EntityID  string     `json:"entity_id"`
	OldRevID  int64      `json:"old_revid"`
	NewRevID  int64      `json:"revid"`
	Kind      ChangeKind `json:"type,omitempty"`
	Timestamp time.Time  `json:"timestamp,omitempty"`
}

// IsNew reports whether the old side of the pair is empty
func (p RevisionPair) IsNew() bool {
	return p.OldRevID == 0
}

// Validate checks the pair is processable
func (p RevisionPair) Validate() error {
	if !IsEntityID(p.EntityID) {
		return fmt.Errorf("invalid entity id %q", p.EntityID)
	}
	if p.NewRevID <= 0 {
		return fmt.Errorf("invalid new revision %d", p.NewRevID)
	}
	if p.OldRevID < 0 || (p.OldRevID != 0 && p.OldRevID >= p.NewRevID) {
		return fmt.Errorf("invalid revision order %d -> %d", p.OldRevID, p.NewRevID)
	}
	return nil
}

func (p RevisionPair) String() string {
	return fmt.Sprintf("%s %d->%d", p.EntityID, p.OldRevID, p.NewRevID)
}

// DiagnosticKind classifies an auditable, non-silent skip
type DiagnosticKind string

const (
	DiagFetchError      DiagnosticKind = "fetch_error"
	DiagParseError      DiagnosticKind = "parse_error"
	DiagResolutionMiss  DiagnosticKind = "resolution_miss"
	DiagFormatError     DiagnosticKind = "format_error"
	DiagBCESubstitution DiagnosticKind = "bce_substitution"
	DiagAmbiguous       DiagnosticKind = "ambiguous_reference"
)

// Fatal reports whether the diagnostic kind aborts the whole pair
func (k DiagnosticKind) Fatal() bool {
	return k == DiagFetchError || k == DiagParseError
}

// Diagnostic records one skipped row or failed pair
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	EntityID string         `json:"entity_id"`
	OldRevID int64          `json:"old_revid"`
	NewRevID int64          `json:"revid"`
	Triple   string         `json:"triple,omitempty"`
	Tier     int            `json:"tier,omitempty"` // last resolution tier attempted
	Message  string         `json:"message"`
}

// NewDiagnostic creates a diagnostic bound to a pair
func NewDiagnostic(kind DiagnosticKind, pair RevisionPair, triple string, msg string) Diagnostic {
	return Diagnostic{
		Kind:     kind,
		EntityID: pair.EntityID,
		OldRevID: pair.OldRevID,
		NewRevID: pair.NewRevID,
		Triple:   triple,
		Message:  msg,
	}
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("[%s] %s %d->%d: %s", d.Kind, d.EntityID, d.OldRevID, d.NewRevID, d.Message)
	if d.Triple != "" {
		s += " (" + d.Triple + ")"
	}
	return s
}
