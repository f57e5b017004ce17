package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGo(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLintAcceptsMarkedQueries(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "q.go", "package q\n\nconst QOne = `--sql 38e12443-a7a6-4b6a-971c-9727bb9dc48c\nselect 1;`\n\nconst Label = \"not a query\"\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint error: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("unexpected violations: %v", violations)
	}
}

func TestLintReportsMissingAndDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "a.go", "package q\n\nconst QA = `--sql 587b0ec2-109c-448d-8473-280d358ac92c\nselect 1;`\n\nconst QBare = `select 2;`\n")
	writeGo(t, dir, "b.go", "package q\n\nconst QB = `--sql 587b0ec2-109c-448d-8473-280d358ac92c\ndelete from generations;`\n")

	violations, err := lint([]string{dir})
	if err != nil {
		t.Fatalf("lint error: %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("violations = %v, want 2", violations)
	}
	var messages []string
	for _, v := range violations {
		messages = append(messages, v.String())
	}
	joined := strings.Join(messages, "\n")
	if !strings.Contains(joined, "QBare") || !strings.Contains(joined, "marker already used by QA") {
		t.Fatalf("unexpected violations:\n%s", joined)
	}
}

func TestLintRepositoryQueries(t *testing.T) {
	violations, err := lint([]string{filepath.Join("..", "..", "sqlinline")})
	if err != nil {
		t.Fatalf("lint error: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("sqlinline violations: %v", violations)
	}
}
