package domain

import "github.com/bytedance/sonic"

// Entity represents base table entity keys. Tasks are partitioned by user id
// with the task id as row key; profiles use the user id for both.
type Entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

const (
	EdmInt32 = "Edm.Int32"
	EdmInt64 = "Edm.Int64"
)

// TaskEntity is the table representation of a Task. List-valued fields are
// stored as JSON strings because the table store has no array columns.
type TaskEntity struct {
	Entity
	ETag         string  `json:"odata.etag,omitempty"`
	Title        string  `json:"Title"`
	Description  string  `json:"Description,omitempty"`
	Color        string  `json:"Color,omitempty"`
	StartDate    *int64  `json:"StartDate,omitempty,string"`
	StartDateTyp *string `json:"StartDate@odata.type,omitempty"`
	EndDate      *int64  `json:"EndDate,omitempty,string"`
	EndDateTyp   *string `json:"EndDate@odata.type,omitempty"`
	Labels       string  `json:"Labels"`
	Lines        string  `json:"Lines,omitempty"`
	LinesChecked string  `json:"LinesChecked,omitempty"`
	Priority     int     `json:"Priority"`
	PriorityTyp  string  `json:"Priority@odata.type"`
	State        int     `json:"State"`
	StateTyp     string  `json:"State@odata.type"`
	Status       string  `json:"Status"`
	CreateAt     int64   `json:"CreateAt,string"`
	CreateAtTyp  string  `json:"CreateAt@odata.type"`
}

// TaskStatusUpdate is a merge-mode patch that touches only the Status column.
type TaskStatusUpdate struct {
	Entity
	Status string `json:"Status"`
}

// TaskLabelsUpdate is a merge-mode patch for the Labels column, used by the
// label sweep.
type TaskLabelsUpdate struct {
	Entity
	Labels string `json:"Labels"`
}

// ProfileEntity is the table representation of a Profile.
type ProfileEntity struct {
	Entity
	ETag         string `json:"odata.etag,omitempty"`
	Email        string `json:"Email,omitempty"`
	Labels       string `json:"Labels"`
	CreatedAt    int64  `json:"CreatedAt,string"`
	CreatedAtTyp string `json:"CreatedAt@odata.type"`
	Theme        string `json:"Theme"`
}

// ProfileLabelsUpdate is a merge-mode patch for the registry column. It is
// written with an If-Match ETag so concurrent registry edits conflict instead
// of clobbering each other.
type ProfileLabelsUpdate struct {
	Entity
	Labels string `json:"Labels"`
}

// ProfileThemeUpdate is a merge-mode patch for the Theme column.
type ProfileThemeUpdate struct {
	Entity
	Theme string `json:"Theme"`
}

// TaskToEntity converts a Task to its table representation under the given
// user partition.
func TaskToEntity(userID string, t Task) (TaskEntity, error) {
	labels, err := encodeStrings(t.Labels)
	if err != nil {
		return TaskEntity{}, err
	}
	lines, err := encodeStrings(t.Lines)
	if err != nil {
		return TaskEntity{}, err
	}
	checked, err := encodeStrings(t.LinesChecked)
	if err != nil {
		return TaskEntity{}, err
	}
	ent := TaskEntity{
		Entity:       Entity{PartitionKey: userID, RowKey: t.ID},
		Title:        t.Title,
		Description:  t.Description,
		Color:        t.Color,
		Labels:       labels,
		Lines:        lines,
		LinesChecked: checked,
		Priority:     t.Priority,
		PriorityTyp:  EdmInt32,
		State:        t.State,
		StateTyp:     EdmInt32,
		Status:       t.Status,
		CreateAt:     t.CreateAt,
		CreateAtTyp:  EdmInt64,
	}
	if t.StartDate != nil {
		typ := EdmInt64
		ent.StartDate = t.StartDate
		ent.StartDateTyp = &typ
	}
	if t.EndDate != nil {
		typ := EdmInt64
		ent.EndDate = t.EndDate
		ent.EndDateTyp = &typ
	}
	return ent, nil
}

// TaskFromEntity converts a table entity back to a Task.
func TaskFromEntity(ent TaskEntity) (Task, error) {
	labels, err := decodeStrings(ent.Labels)
	if err != nil {
		return Task{}, err
	}
	lines, err := decodeStrings(ent.Lines)
	if err != nil {
		return Task{}, err
	}
	checked, err := decodeStrings(ent.LinesChecked)
	if err != nil {
		return Task{}, err
	}
	return Task{
		ID:           ent.RowKey,
		Title:        ent.Title,
		Description:  ent.Description,
		Color:        ent.Color,
		StartDate:    ent.StartDate,
		EndDate:      ent.EndDate,
		Labels:       labels,
		Lines:        lines,
		LinesChecked: checked,
		Priority:     ent.Priority,
		State:        ent.State,
		Status:       ent.Status,
		CreateAt:     ent.CreateAt,
	}, nil
}

// ProfileToEntity converts a Profile to its table representation.
func ProfileToEntity(userID string, p Profile) (ProfileEntity, error) {
	labels, err := EncodeLabels(p.Labels)
	if err != nil {
		return ProfileEntity{}, err
	}
	return ProfileEntity{
		Entity:       Entity{PartitionKey: userID, RowKey: userID},
		Email:        p.Email,
		Labels:       labels,
		CreatedAt:    p.CreatedAt,
		CreatedAtTyp: EdmInt64,
		Theme:        p.Theme,
	}, nil
}

// ProfileFromEntity converts a table entity back to a Profile.
func ProfileFromEntity(ent ProfileEntity) (Profile, error) {
	labels, err := DecodeLabels(ent.Labels)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		Email:     ent.Email,
		Labels:    labels,
		CreatedAt: ent.CreatedAt,
		Theme:     ent.Theme,
	}, nil
}

// EncodeLabels serializes a registry for storage in a single string column.
func EncodeLabels(labels []Label) (string, error) {
	if labels == nil {
		labels = []Label{}
	}
	data, err := sonic.Marshal(labels)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeLabels is the inverse of EncodeLabels. An empty column decodes to an
// empty registry.
func DecodeLabels(raw string) ([]Label, error) {
	if raw == "" {
		return []Label{}, nil
	}
	var labels []Label
	if err := sonic.UnmarshalString(raw, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}

// EncodeStrings serializes a task's list column.
func EncodeStrings(values []string) (string, error) {
	return encodeStrings(values)
}

// DecodeStrings is the inverse of EncodeStrings.
func DecodeStrings(raw string) ([]string, error) {
	return decodeStrings(raw)
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := sonic.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeStrings(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var values []string
	if err := sonic.UnmarshalString(raw, &values); err != nil {
		return nil, err
	}
	return values, nil
}
