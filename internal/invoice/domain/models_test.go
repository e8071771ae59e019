package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCanTransitionTo(t *testing.T) {
	all := []Status{StatusDraft, StatusPending, StatusPaid, StatusCancelled}
	allowed := map[[2]Status]bool{
		{StatusDraft, StatusPending}:     true,
		{StatusDraft, StatusCancelled}:   true,
		{StatusPending, StatusCancelled}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestEditable(t *testing.T) {
	tests := []struct {
		status   Status
		editable bool
	}{
		{StatusDraft, true},
		{StatusPending, true},
		{StatusPaid, false},
		{StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.editable, Invoice{Status: tt.status}.Editable())
			assert.Equal(t, !tt.editable, tt.status.Terminal())
		})
	}
}
