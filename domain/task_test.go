package domain

import "testing"

func TestNewTaskInitialState(t *testing.T) {
	task, err := NewTask("t1", TaskFields{Title: "Buy milk", Priority: PriorityNone}, 42)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Status != StatusActive {
		t.Fatalf("expected active status, got %q", task.Status)
	}
	if !ValidStatus(task.Status) {
		t.Fatalf("status %q not valid", task.Status)
	}
	if !ValidPriority(task.Priority) {
		t.Fatalf("priority %d not valid", task.Priority)
	}
	if task.State != StateUnused {
		t.Fatalf("expected reserved state -1, got %d", task.State)
	}
	if task.CreateAt != 42 {
		t.Fatalf("expected createAt 42, got %d", task.CreateAt)
	}
	if task.Labels == nil || len(task.Labels) != 0 {
		t.Fatalf("expected empty labels, got %#v", task.Labels)
	}
}

func TestNewTaskRequiresTitle(t *testing.T) {
	if _, err := NewTask("t1", TaskFields{Priority: PriorityNone}, 1); err != ErrTitleRequired {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
}

func TestNewTaskRejectsUnknownPriority(t *testing.T) {
	if _, err := NewTask("t1", TaskFields{Title: "x", Priority: 3}, 1); err != ErrInvalidPriority {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
	if _, err := NewTask("t1", TaskFields{Title: "x", Priority: -2}, 1); err != ErrInvalidPriority {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
}

func TestToggleArchiveTwiceReturnsToOriginal(t *testing.T) {
	for _, status := range []string{StatusActive, StatusArchived} {
		once := ToggleArchive(status)
		if once == status {
			t.Fatalf("toggle from %q did not change status", status)
		}
		if twice := ToggleArchive(once); twice != status {
			t.Fatalf("toggle twice from %q landed on %q", status, twice)
		}
	}
}

func TestDeleteIsPermanentOnlyFromDeleted(t *testing.T) {
	if DeleteIsPermanent(StatusActive) {
		t.Fatal("delete from active must be soft")
	}
	if DeleteIsPermanent(StatusArchived) {
		t.Fatal("delete from archived must be soft")
	}
	if !DeleteIsPermanent(StatusDeleted) {
		t.Fatal("delete from deleted must be permanent")
	}
}

func TestApplyUpdateRestoresDeletedTask(t *testing.T) {
	task, err := NewTask("t1", TaskFields{Title: "Buy milk", Priority: PriorityNone}, 1)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	task.Status = StatusDeleted

	updated, err := ApplyUpdate(task, TaskFields{Title: "Buy oat milk", Priority: PriorityHigh})
	if err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if updated.Status != StatusActive {
		t.Fatalf("expected restore to active, got %q", updated.Status)
	}
	if updated.Title != "Buy oat milk" || updated.Priority != PriorityHigh {
		t.Fatalf("fields not applied: %#v", updated)
	}
}

func TestApplyUpdateRestoreNeverLandsInArchived(t *testing.T) {
	// A task archived, then trashed, then edited comes back active. The prior
	// archived flag is intentionally not restored.
	task, _ := NewTask("t1", TaskFields{Title: "x", Priority: PriorityNone}, 1)
	task.Status = ToggleArchive(task.Status)
	if task.Status != StatusArchived {
		t.Fatalf("setup: expected archived, got %q", task.Status)
	}
	task.Status = StatusDeleted

	updated, err := ApplyUpdate(task, TaskFields{Title: "x", Priority: PriorityNone})
	if err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if updated.Status != StatusActive {
		t.Fatalf("expected active after restore, got %q", updated.Status)
	}
}

func TestApplyUpdateKeepsStatusOtherwise(t *testing.T) {
	task, _ := NewTask("t1", TaskFields{Title: "x", Priority: PriorityNone}, 1)
	task.Status = StatusArchived

	updated, err := ApplyUpdate(task, TaskFields{Title: "y", Priority: PriorityNone})
	if err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if updated.Status != StatusArchived {
		t.Fatalf("expected archived preserved, got %q", updated.Status)
	}
}

func TestApplyUpdateNilLabelsLeavesLabels(t *testing.T) {
	task, _ := NewTask("t1", TaskFields{Title: "x", Labels: []string{"home"}, Priority: PriorityNone}, 1)

	updated, err := ApplyUpdate(task, TaskFields{Title: "x", Priority: PriorityNone})
	if err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if len(updated.Labels) != 1 || updated.Labels[0] != "home" {
		t.Fatalf("labels should be untouched, got %#v", updated.Labels)
	}

	updated, err = ApplyUpdate(task, TaskFields{Title: "x", Labels: []string{}, Priority: PriorityNone})
	if err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if len(updated.Labels) != 0 {
		t.Fatalf("empty labels should clear, got %#v", updated.Labels)
	}
}

func TestStripLabel(t *testing.T) {
	task, _ := NewTask("t1", TaskFields{Title: "x", Labels: []string{"home", "work", "home"}, Priority: PriorityNone}, 1)
	if !StripLabel(&task, "home") {
		t.Fatal("expected removal")
	}
	if len(task.Labels) != 1 || task.Labels[0] != "work" {
		t.Fatalf("unexpected labels after strip: %#v", task.Labels)
	}
	if StripLabel(&task, "home") {
		t.Fatal("second strip should find nothing")
	}
}
