package core

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestCountingSource_SkipsBOM(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("temp_id,nombre")...),
			expected: "temp_id,nombre",
		},
		{
			name:     "file without BOM",
			input:    []byte("temp_id,nombre"),
			expected: "temp_id,nombre",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newCountingSource(bytes.NewReader(tt.input), int64(len(tt.input)))
			result, err := io.ReadAll(src)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestCountingSource_Progress(t *testing.T) {
	input := strings.Repeat("x", 1000)
	src := newCountingSource(strings.NewReader(input), int64(len(input)))

	if src.Percent() != 0 && src.BytesRead() < int64(len(input)) {
		// Peek may already have buffered part of the input
		t.Logf("initial progress %d%%", src.Percent())
	}

	if _, err := io.Copy(io.Discard, src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if src.BytesRead() != int64(len(input)) {
		t.Errorf("BytesRead = %d, want %d", src.BytesRead(), len(input))
	}
	if src.Percent() != 100 {
		t.Errorf("Percent = %d, want 100", src.Percent())
	}
}

func TestCountingSource_UnknownSize(t *testing.T) {
	src := newCountingSource(strings.NewReader("abc"), 0)
	if _, err := io.Copy(io.Discard, src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Percent() != 0 {
		t.Errorf("Percent = %d, want 0 for unknown size", src.Percent())
	}
	if src.BytesRead() != 3 {
		t.Errorf("BytesRead = %d, want 3", src.BytesRead())
	}
}
