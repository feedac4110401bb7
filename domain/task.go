package domain

// Task status values. A task is always in exactly one of them.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusDeleted  = "deleted"
)

// Task priority levels. PriorityNone means the task has no priority set and
// also acts as the "no filter" value in queries.
const (
	PriorityNone   = -1
	PriorityLow    = 0
	PriorityMedium = 1
	PriorityHigh   = 2
)

// StateUnused is the reserved value written to the State field. No code path
// reads it; it exists for compatibility with clients that do.
const StateUnused = -1

// Task represents a single task owned by one user.
type Task struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Color        string   `json:"color,omitempty"`
	StartDate    *int64   `json:"startDate,omitempty"`
	EndDate      *int64   `json:"endDate,omitempty"`
	Labels       []string `json:"labels"`
	Lines        []string `json:"lines,omitempty"`
	LinesChecked []string `json:"linesChecked,omitempty"`
	Priority     int      `json:"priority"`
	State        int      `json:"state"`
	Status       string   `json:"status"`
	CreateAt     int64    `json:"createAt"`
}

// TaskFields carries the editable fields of a task. Labels nil means "leave
// labels untouched" on update; an empty non-nil slice clears them. Dates are
// cleared by sending an explicit null, which decodes to a nil pointer, so an
// update always carries the full date pair.
type TaskFields struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Color       string   `json:"color"`
	StartDate   *int64   `json:"startDate"`
	EndDate     *int64   `json:"endDate"`
	Labels      []string `json:"labels"`
	Priority    int      `json:"priority"`
}

// ValidStatus reports whether s is one of the three task statuses.
func ValidStatus(s string) bool {
	return s == StatusActive || s == StatusArchived || s == StatusDeleted
}

// ValidPriority reports whether p is a known priority level, PriorityNone
// included.
func ValidPriority(p int) bool {
	return p >= PriorityNone && p <= PriorityHigh
}

// NewTask builds a fresh task in the initial state. The caller supplies the
// generated id and the server-clock creation timestamp.
func NewTask(id string, f TaskFields, createAt int64) (Task, error) {
	if f.Title == "" {
		return Task{}, ErrTitleRequired
	}
	if !ValidPriority(f.Priority) {
		return Task{}, ErrInvalidPriority
	}
	labels := f.Labels
	if labels == nil {
		labels = []string{}
	}
	return Task{
		ID:           id,
		Title:        f.Title,
		Description:  f.Description,
		Color:        f.Color,
		StartDate:    f.StartDate,
		EndDate:      f.EndDate,
		Labels:       labels,
		Lines:        []string{},
		LinesChecked: []string{},
		Priority:     f.Priority,
		State:        StateUnused,
		Status:       StatusActive,
		CreateAt:     createAt,
	}, nil
}

// ApplyUpdate merges the editable fields into t. Editing a trashed task
// restores it: if the current status is deleted the result is active again,
// regardless of the status the task had before it was trashed.
func ApplyUpdate(t Task, f TaskFields) (Task, error) {
	if f.Title == "" {
		return Task{}, ErrTitleRequired
	}
	if !ValidPriority(f.Priority) {
		return Task{}, ErrInvalidPriority
	}
	t.Title = f.Title
	t.Description = f.Description
	t.Color = f.Color
	t.StartDate = f.StartDate
	t.EndDate = f.EndDate
	t.Priority = f.Priority
	if f.Labels != nil {
		t.Labels = f.Labels
	}
	if t.Status == StatusDeleted {
		t.Status = StatusActive
	}
	return t, nil
}

// ToggleArchive returns the status an archive action moves the task to. It is
// a toggle, not idempotent: archiving an already archived task brings it back
// to active.
func ToggleArchive(status string) string {
	if status == StatusArchived {
		return StatusActive
	}
	return StatusArchived
}

// DeleteIsPermanent reports whether a delete action on a task with the given
// status removes it for good. A first delete is always soft; only deleting an
// already trashed task erases it.
func DeleteIsPermanent(status string) bool {
	return status == StatusDeleted
}

// StripLabel removes every occurrence of the given label title from the
// task's label list and reports whether anything was removed.
func StripLabel(t *Task, label string) bool {
	removed := false
	kept := t.Labels[:0]
	for _, l := range t.Labels {
		if l == label {
			removed = true
			continue
		}
		kept = append(kept, l)
	}
	if removed {
		t.Labels = kept
	}
	return removed
}

// HasLabel reports whether the task carries the given label title.
func HasLabel(t Task, label string) bool {
	for _, l := range t.Labels {
		if l == label {
			return true
		}
	}
	return false
}
