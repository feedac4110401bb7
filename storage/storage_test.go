package storage

import (
	"testing"

	"bluetask-api/domain"
)

func TestBuildTaskFilterDefault(t *testing.T) {
	got := buildTaskFilter("user-1", domain.DefaultFilter())
	want := "PartitionKey eq 'user-1' and Status eq 'active'"
	if got != want {
		t.Fatalf("unexpected filter:\n got %q\nwant %q", got, want)
	}
}

func TestBuildTaskFilterWithPriority(t *testing.T) {
	f := domain.Filter{OrderBy: domain.OrderByCreateAt, Status: domain.StatusDeleted, Priority: domain.PriorityHigh}
	got := buildTaskFilter("user-1", f)
	want := "PartitionKey eq 'user-1' and Status eq 'deleted' and Priority eq 2"
	if got != want {
		t.Fatalf("unexpected filter:\n got %q\nwant %q", got, want)
	}
}

func TestBuildTaskFilterLabelPinsActive(t *testing.T) {
	// The label membership test happens in process; the table-side filter must
	// still pin the status partition to active.
	f := domain.Filter{Status: domain.StatusArchived, Label: "home", Priority: domain.PriorityNone}.Normalize()
	got := buildTaskFilter("user-1", f)
	want := "PartitionKey eq 'user-1' and Status eq 'active'"
	if got != want {
		t.Fatalf("unexpected filter:\n got %q\nwant %q", got, want)
	}
}

func TestBuildTaskFilterEscapesQuotes(t *testing.T) {
	got := buildTaskFilter("o'brien", domain.DefaultFilter())
	want := "PartitionKey eq 'o''brien' and Status eq 'active'"
	if got != want {
		t.Fatalf("unexpected filter:\n got %q\nwant %q", got, want)
	}
}
