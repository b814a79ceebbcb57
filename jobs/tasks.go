package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypePermissionsRefresh re-resolves a principal's cached effective
	// permission set after their grants changed.
	TaskTypePermissionsRefresh = "perms:refresh"
)

// PermissionsRefreshPayload identifies the principal whose grants changed.
type PermissionsRefreshPayload struct {
	UserID int64 `json:"user_id"`
}

// NewPermissionsRefreshTask constructs an Asynq task.
func NewPermissionsRefreshTask(payload PermissionsRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypePermissionsRefresh, data), nil
}

// PermissionRefresher recomputes a principal's cached permissions.
type PermissionRefresher interface {
	Refresh(ctx context.Context, userID int64) error
}

// HandlePermissionsRefreshTask adapts a refresher to an Asynq handler. The
// delivery is at-least-once; the handler re-resolves from the store, so a
// duplicate delivery is harmless.
func HandlePermissionsRefreshTask(refresher PermissionRefresher) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload PermissionsRefreshPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		return refresher.Refresh(ctx, payload.UserID)
	}
}
