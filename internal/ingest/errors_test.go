package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"no header", ErrNoHeader, "FILE002"},
		{"wrapped no header", fmt.Errorf("read upload: %w", ErrNoHeader), "FILE002"},
		{"invalid mapping", ErrInvalidMapping, "VAL001"},
		{"invalid mapping detail", errInvalidMapping("date column is not mapped"), "VAL001"},
		{"invalid owner", ErrInvalidOwner, "VAL002"},
		{"wrapped invalid owner", fmt.Errorf("%w: %q", ErrInvalidOwner, "abc"), "VAL002"},
		{"too many imports", ErrTooManyImports, "IMP001"},
		{"duplicate", ErrDuplicate, "DB001"},
		{"deadline", context.DeadlineExceeded, "DB006"},
		{"cancelled", context.Canceled, "IMP002"},
		{"body too large", errors.New("http: request body too large"), "FILE001"},
		{"no file", errors.New("no file provided"), "FILE004"},
		{"connection refused", errors.New("dial tcp: connection refused"), "DB004"},
		{"aborted import", fmt.Errorf("import aborted: %w", errors.New("disk full")), "IMP003"},
		{"unknown", errors.New("something odd"), "IMP099"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := MapError(tt.err)
			assert.Equal(t, tt.wantCode, msg.Code)
			assert.NotEmpty(t, msg.Message)
		})
	}
}

func TestMapError_NilError(t *testing.T) {
	assert.Equal(t, "IMP099", MapError(nil).Code)
}
