// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFromPath(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{name: "plain value", content: "correct horse", expected: "correct horse"},
		{name: "trailing newline", content: "correct horse\n", expected: "correct horse"},
		{name: "surrounding whitespace", content: "  correct horse \n", expected: "correct horse"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(tempDir, test.name)
			if err := os.WriteFile(path, []byte(test.content), 0600); err != nil {
				t.Fatalf("writing test file: %v", err)
			}

			result, err := ReadFromPath(path)
			if err != nil {
				t.Fatalf("ReadFromPath() error: %v", err)
			}
			defer result.Close()
			if result.String() != test.expected {
				t.Errorf("ReadFromPath() = %q, want %q", result.String(), test.expected)
			}
		})
	}
}

func TestReadFromPathErrors(t *testing.T) {
	tempDir := t.TempDir()

	if _, err := ReadFromPath(filepath.Join(tempDir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}

	blank := filepath.Join(tempDir, "blank")
	if err := os.WriteFile(blank, []byte(" \n\t"), 0600); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	if _, err := ReadFromPath(blank); err == nil {
		t.Error("expected error for whitespace-only file")
	}
}

func TestReadLine(t *testing.T) {
	buffer, err := readLine(strings.NewReader("pass word\nignored\n"))
	if err != nil {
		t.Fatalf("readLine: %v", err)
	}
	defer buffer.Close()
	if buffer.String() != "pass word" {
		t.Errorf("readLine = %q", buffer.String())
	}

	if _, err := readLine(strings.NewReader("")); err == nil {
		t.Error("expected error for empty input")
	}
}
