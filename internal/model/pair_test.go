package model

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRevisionPair_Validate(t *testing.T) {
	tests := []struct {
		name    string
		pair    RevisionPair
		wantErr bool
	}{
		{"edit", RevisionPair{EntityID: "Q42", OldRevID: 10, NewRevID: 11}, false},
		{"new entity", RevisionPair{EntityID: "Q42", OldRevID: 0, NewRevID: 11}, false},
		{"property entity", RevisionPair{EntityID: "P31", OldRevID: 1, NewRevID: 2}, false},
		{"bad id", RevisionPair{EntityID: "Item:Q42", OldRevID: 1, NewRevID: 2}, true},
		{"leading zero", RevisionPair{EntityID: "Q042", OldRevID: 1, NewRevID: 2}, true},
		{"reversed", RevisionPair{EntityID: "Q42", OldRevID: 5, NewRevID: 2}, true},
		{"missing new", RevisionPair{EntityID: "Q42", OldRevID: 5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pair.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDiagnosticKindFor(t *testing.T) {
	assert.Equal(t, DiagFetchError, DiagnosticKindFor(fmt.Errorf("get: %w", ErrSnapshotUnavailable)))
	assert.Equal(t, DiagParseError, DiagnosticKindFor(fmt.Errorf("old: %w", ErrParse)))
	assert.Equal(t, DiagResolutionMiss, DiagnosticKindFor(ErrResolutionMiss))
	assert.Equal(t, DiagFormatError, DiagnosticKindFor(ErrFormat))
	assert.True(t, DiagParseError.Fatal())
	assert.False(t, DiagResolutionMiss.Fatal())
}

func TestDiagnostic_String(t *testing.T) {
	d := NewDiagnostic(DiagResolutionMiss, RevisionPair{EntityID: "Q42", OldRevID: 1, NewRevID: 2}, "?claim pq:P580 \"x\" .", "no claim")
	assert.Equal(t, `[resolution_miss] Q42 1->2: no claim (?claim pq:P580 "x" .)`, d.String())
}
