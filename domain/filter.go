package domain

import (
	"sort"
	"strconv"
)

// Order-by keys accepted by the task list query.
const (
	OrderByCreateAt  = "createAt"
	OrderByStartDate = "startDate"
	OrderByEndDate   = "endDate"
)

// Filter is the user-selected tuple the task list is queried with. The zero
// value is not meaningful; use DefaultFilter or Normalize.
type Filter struct {
	OrderBy  string
	Status   string
	Label    string
	Priority int
}

// DefaultFilter returns the filter applied when the user has selected
// nothing: newest first, active tasks, no label, no priority constraint.
func DefaultFilter() Filter {
	return Filter{OrderBy: OrderByCreateAt, Status: StatusActive, Priority: PriorityNone}
}

// ValidOrderBy reports whether key is an accepted ordering field.
func ValidOrderBy(key string) bool {
	return key == OrderByCreateAt || key == OrderByStartDate || key == OrderByEndDate
}

// Normalize fills in defaults for unset fields and applies the label rule: a
// non-empty label filter only ever shows active tasks, so it overrides
// whatever status partition was selected.
func (f Filter) Normalize() Filter {
	if f.OrderBy == "" {
		f.OrderBy = OrderByCreateAt
	}
	if f.Status == "" {
		f.Status = StatusActive
	}
	if f.Label != "" {
		f.Status = StatusActive
	}
	return f
}

// Validate checks the tuple after normalization.
func (f Filter) Validate() error {
	if !ValidOrderBy(f.OrderBy) {
		return ErrInvalidOrderBy
	}
	if !ValidStatus(f.Status) {
		return ErrInvalidStatus
	}
	if !ValidPriority(f.Priority) {
		return ErrInvalidPriority
	}
	return nil
}

// Matches reports whether the task belongs in the filtered list. Status and
// priority are also constrained server-side; the label membership test only
// exists here because the table store cannot express it.
func (f Filter) Matches(t Task) bool {
	if t.Status != f.Status {
		return false
	}
	if f.Priority != PriorityNone && t.Priority != f.Priority {
		return false
	}
	if f.Label != "" && !HasLabel(t, f.Label) {
		return false
	}
	return true
}

// Key returns a canonical representation of the tuple, used as a cache field
// name.
func (f Filter) Key() string {
	return f.OrderBy + "|" + f.Status + "|" + f.Label + "|" + strconv.Itoa(f.Priority)
}

// SortTasks orders tasks descending by the chosen field. The table store
// returns entities in key order, so ordering happens in process. Tasks
// without the chosen date sort last.
func SortTasks(tasks []Task, orderBy string) {
	value := func(t Task) (int64, bool) {
		switch orderBy {
		case OrderByStartDate:
			if t.StartDate == nil {
				return 0, false
			}
			return *t.StartDate, true
		case OrderByEndDate:
			if t.EndDate == nil {
				return 0, false
			}
			return *t.EndDate, true
		default:
			return t.CreateAt, true
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		vi, oki := value(tasks[i])
		vj, okj := value(tasks[j])
		if oki != okj {
			return oki
		}
		return vi > vj
	})
}
