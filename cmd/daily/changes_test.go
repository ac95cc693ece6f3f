package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestChangesCmdCurrent(t *testing.T) {
	a, _ := testApp(t)
	repo := makeRepo(t)

	out, err := run(t, a, "changes", "--repo", repo)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "MODIFIED auth.go") {
		t.Errorf("expected modified auth.go in output, got:\n%s", out)
	}
}

func TestChangesCmdHistoryJSON(t *testing.T) {
	a, _ := testApp(t)
	repo := makeRepo(t)

	out, err := run(t, a, "changes", repo, "--since", "2025-07-01", "--json")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	var decoded struct {
		Since   string
		History []struct {
			Commits []struct {
				Message string
			}
		}
		Current []any
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}

	if decoded.Since != "2025-07-01" {
		t.Errorf("expected since 2025-07-01, got %q", decoded.Since)
	}
	if len(decoded.History) != 1 || len(decoded.History[0].Commits) != 1 {
		t.Fatalf("expected one commit, got %+v", decoded.History)
	}
	if decoded.History[0].Commits[0].Message != "Add auth package" {
		t.Errorf("unexpected message %q", decoded.History[0].Commits[0].Message)
	}
	if decoded.Current != nil {
		t.Error("current changes should be omitted without --current")
	}
}

func TestChangesCmdBadDate(t *testing.T) {
	a, _ := testApp(t)

	if _, err := run(t, a, "changes", "--since", "July 1st"); err == nil {
		t.Fatal("expected date error")
	}
}

func TestChangesCmdUnavailable(t *testing.T) {
	a, _ := testApp(t)
	dir := t.TempDir()

	out, err := run(t, a, "changes", "--repo", dir)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "(unavailable)") {
		t.Errorf("expected unavailable marker, got:\n%s", out)
	}
}
