package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"bluetask-api/domain"
)

// Storage provides access to underlying persistence mechanisms: the task and
// profile tables plus the label-sweep queue.
type Storage struct {
	taskTable    *aztables.Client
	profileTable *aztables.Client
	sweepQueue   *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, profilesTable, sweepQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	tt := svc.NewClient(tasksTable)
	pt := svc.NewClient(profilesTable)
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	sq, err := azqueue.NewQueueClientFromConnectionString(connStr, sweepQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{taskTable: tt, profileTable: pt, sweepQueue: sq}, nil
}

// buildTaskFilter translates the filter tuple into an OData filter. Label
// membership cannot be expressed here; FetchTasks applies it in process. The
// tuple must already be normalized, so a label filter arrives with the status
// pinned to active.
func buildTaskFilter(userID string, f domain.Filter) string {
	var b strings.Builder
	b.WriteString("PartitionKey eq '")
	b.WriteString(escapeODataString(userID))
	b.WriteString("' and Status eq '")
	b.WriteString(escapeODataString(f.Status))
	b.WriteString("'")
	if f.Priority != domain.PriorityNone {
		b.WriteString(" and Priority eq ")
		b.WriteString(strconv.Itoa(f.Priority))
	}
	return b.String()
}

func escapeODataString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// FetchTasks retrieves the user's tasks matching the filter, ordered newest
// first by the chosen field. The whole partition slice is fetched in one
// bounded pass; personal task lists are small and pagination is out of scope.
func (s *Storage) FetchTasks(ctx context.Context, userID string, f domain.Filter) ([]domain.Task, error) {
	filter := buildTaskFilter(userID, f)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent domain.TaskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			task, err := domain.TaskFromEntity(ent)
			if err != nil {
				return nil, err
			}
			if f.Label != "" && !domain.HasLabel(task, f.Label) {
				continue
			}
			tasks = append(tasks, task)
		}
	}
	domain.SortTasks(tasks, f.OrderBy)
	return tasks, nil
}

// GetTask retrieves one task. A missing task returns (nil, nil); absence is
// data, not an error.
func (s *Storage) GetTask(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	resp, err := s.taskTable.GetEntity(ctx, userID, taskID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	var ent domain.TaskEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	task, err := domain.TaskFromEntity(ent)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// InsertTask creates a new task entity. The id is caller-generated, so a 409
// is a genuine collision and surfaces as an error.
func (s *Storage) InsertTask(ctx context.Context, userID string, t domain.Task) error {
	ent, err := domain.TaskToEntity(userID, t)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.taskTable.AddEntity(ctx, payload, nil)
	return err
}

// ReplaceTask writes the full task entity, replacing whatever was stored.
// Used for field edits, which carry the complete record read beforehand.
func (s *Storage) ReplaceTask(ctx context.Context, userID string, t domain.Task) error {
	ent, err := domain.TaskToEntity(userID, t)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.taskTable.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

// SetTaskStatus patches only the status column. Last write wins; task
// mutations carry no concurrency token.
func (s *Storage) SetTaskStatus(ctx context.Context, userID, taskID, status string) error {
	upd := domain.TaskStatusUpdate{
		Entity: domain.Entity{PartitionKey: userID, RowKey: taskID},
		Status: status,
	}
	payload, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return domain.ErrNotFound
		}
	}
	return err
}

// DeleteTask removes the entity permanently.
func (s *Storage) DeleteTask(ctx context.Context, userID, taskID string) error {
	et := azcore.ETagAny
	_, err := s.taskTable.DeleteEntity(ctx, userID, taskID, &aztables.DeleteEntityOptions{IfMatch: &et})
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return domain.ErrNotFound
		}
	}
	return err
}

// GetProfile retrieves the user's profile and its ETag for later
// read-modify-write updates. A missing profile returns (nil, "", nil).
func (s *Storage) GetProfile(ctx context.Context, userID string) (*domain.Profile, string, error) {
	resp, err := s.profileTable.GetEntity(ctx, userID, userID, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, "", nil
		}
		return nil, "", err
	}
	var ent domain.ProfileEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, "", err
	}
	profile, err := domain.ProfileFromEntity(ent)
	if err != nil {
		return nil, "", err
	}
	return &profile, ent.ETag, nil
}

// GetProfileForUpdate reads the profile directly from table storage. Registry
// writers call this instead of GetProfile so the ETag is always fresh, even
// when a caching wrapper serves plain reads.
func (s *Storage) GetProfileForUpdate(ctx context.Context, userID string) (*domain.Profile, string, error) {
	return s.GetProfile(ctx, userID)
}

// InsertProfile provisions the profile document. A concurrent first login may
// have created it already; 409 maps to ErrConcurrencyConflict so the caller
// re-reads instead of failing.
func (s *Storage) InsertProfile(ctx context.Context, userID string, p domain.Profile) error {
	ent, err := domain.ProfileToEntity(userID, p)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.profileTable.AddEntity(ctx, payload, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 409 {
			return domain.ErrConcurrencyConflict
		}
	}
	return err
}

// UpdateProfileLabels patches the registry column, guarded by the ETag read
// with the profile. This is the single-document transaction primitive: a
// concurrent registry edit invalidates the ETag and the caller retries.
func (s *Storage) UpdateProfileLabels(ctx context.Context, userID string, labels []domain.Label, etag string) error {
	raw, err := domain.EncodeLabels(labels)
	if err != nil {
		return err
	}
	upd := domain.ProfileLabelsUpdate{
		Entity: domain.Entity{PartitionKey: userID, RowKey: userID},
		Labels: raw,
	}
	payload, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	et := azcore.ETag(etag)
	if etag == "" {
		et = azcore.ETagAny
	}
	_, err = s.profileTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 412 {
			return domain.ErrConcurrencyConflict
		}
	}
	return err
}

// UpdateProfileTheme patches the theme column. Last write wins.
func (s *Storage) UpdateProfileTheme(ctx context.Context, userID, theme string) error {
	upd := domain.ProfileThemeUpdate{
		Entity: domain.Entity{PartitionKey: userID, RowKey: userID},
		Theme:  theme,
	}
	payload, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.profileTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return domain.ErrNotFound
		}
	}
	return err
}

// EnqueueSweep sends a label-sweep command to the sweep queue.
func (s *Storage) EnqueueSweep(ctx context.Context, cmd domain.SweepCommand) error {
	data, err := sonic.Marshal(cmd)
	if err != nil {
		return err
	}
	_, err = s.sweepQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// SweepReceipt identifies a dequeued sweep message for later deletion.
type SweepReceipt struct {
	MessageID  string
	PopReceipt string
}

// DequeueSweep retrieves a single sweep command, or nil when the queue is
// empty.
func (s *Storage) DequeueSweep(ctx context.Context) (*domain.SweepCommand, SweepReceipt, error) {
	resp, err := s.sweepQueue.DequeueMessage(ctx, nil)
	if err != nil {
		return nil, SweepReceipt{}, err
	}
	if len(resp.Messages) == 0 {
		return nil, SweepReceipt{}, nil
	}
	msg := resp.Messages[0]
	var cmd domain.SweepCommand
	if err := sonic.UnmarshalString(*msg.MessageText, &cmd); err != nil {
		return nil, SweepReceipt{}, err
	}
	rcpt := SweepReceipt{MessageID: *msg.MessageID, PopReceipt: *msg.PopReceipt}
	return &cmd, rcpt, nil
}

// DeleteSweep removes a processed sweep message from the queue.
func (s *Storage) DeleteSweep(ctx context.Context, rcpt SweepReceipt) error {
	_, err := s.sweepQueue.DeleteMessage(ctx, rcpt.MessageID, rcpt.PopReceipt, nil)
	return err
}

// SweepLabel strips the label title from every task of the user that still
// references it. The per-task cleanup is best effort: a failing update does
// not stop the sweep and nothing is rolled back.
func (s *Storage) SweepLabel(ctx context.Context, userID, label string) error {
	filter := "PartitionKey eq '" + escapeODataString(userID) + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	var lastErr error
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, e := range resp.Entities {
			var ent domain.TaskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				lastErr = err
				continue
			}
			task, err := domain.TaskFromEntity(ent)
			if err != nil {
				lastErr = err
				continue
			}
			if !domain.StripLabel(&task, label) {
				continue
			}
			if err := s.updateTaskLabels(ctx, userID, task.ID, task.Labels); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

func (s *Storage) updateTaskLabels(ctx context.Context, userID, taskID string, labels []string) error {
	raw, err := domain.EncodeStrings(labels)
	if err != nil {
		return err
	}
	upd := domain.TaskLabelsUpdate{
		Entity: domain.Entity{PartitionKey: userID, RowKey: taskID},
		Labels: raw,
	}
	payload, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	return err
}
