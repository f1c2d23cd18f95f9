package batch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStringOrArray(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    []string
		wantErr bool
	}{
		{name: "single string", input: "T1", want: []string{"T1"}},
		{name: "array of strings", input: []any{"T1", "T2"}, want: []string{"T1", "T2"}},
		{name: "typed slice", input: []string{"T1"}, want: []string{"T1"}},
		{name: "JSON string array", input: `["T1", "T2"]`, want: []string{"T1", "T2"}},
		{name: "bracketed text is not JSON", input: "[PATCH] fix", want: []string{"[PATCH] fix"}},
		{name: "nil input", input: nil, wantErr: true},
		{name: "empty string", input: "", wantErr: true},
		{name: "empty array", input: []any{}, wantErr: true},
		{name: "JSON empty array", input: `[]`, wantErr: true},
		{name: "array with non-string", input: []any{"T1", 123}, wantErr: true},
		{name: "array with empty string", input: []any{"T1", ""}, wantErr: true},
		{name: "invalid type", input: 123, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStringOrArray(tt.input, "threadIds")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOptionalList(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    []string
		wantErr bool
	}{
		{name: "missing", input: nil, want: []string{}},
		{name: "blank", input: "  ", want: []string{}},
		{name: "empty array", input: []any{}, want: []string{}},
		{name: "JSON empty array", input: "[]", want: []string{}},
		{name: "one", input: "IOB/libcamera", want: []string{"IOB/libcamera"}},
		{name: "many", input: []any{"a", "b"}, want: []string{"a", "b"}},
		{name: "bad type", input: 1.5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOptionalList(tt.input, "addLabels")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatResults(t *testing.T) {
	output := FormatResults([]Result{
		NewSuccessResult("T1", "moved"),
		NewSuccessResult("T2", "moved"),
		NewErrorResult("T3", errors.New("boom")),
	})

	var br BatchResult
	require.NoError(t, json.Unmarshal([]byte(output), &br))
	assert.Equal(t, 3, br.Total)
	assert.Equal(t, 2, br.Successful)
	assert.Equal(t, 1, br.Failed)
	assert.Equal(t, "boom", br.Results[2].Error)
}

func TestProcessBatch(t *testing.T) {
	fn := func(_ context.Context, id string) (string, error) {
		if id == "T2" {
			return "", errors.New("failed to process T2")
		}
		return "processed " + id, nil
	}

	results := ProcessBatch(context.Background(), []string{"T1", "T2", "T3"}, fn)

	require.Len(t, results, 3)
	assert.Equal(t, Result{ID: "T1", Status: StatusSuccess, Result: "processed T1"}, results[0])
	assert.Equal(t, Result{ID: "T2", Status: StatusError, Error: "failed to process T2"}, results[1])
	assert.Equal(t, StatusSuccess, results[2].Status)
}

func TestProcessBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	results := ProcessBatch(ctx, []string{"T1", "T2"}, func(context.Context, string) (string, error) {
		calls++
		cancel()
		return "ok", nil
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, StatusError, results[1].Status)
	assert.Equal(t, context.Canceled.Error(), results[1].Error)
}
