package builtin

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/agentmesh/core/internal/store"
	"github.com/agentmesh/core/pkg/types"
)

type taskItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"createdAt"`
}

// TaskListTool maintains an ad hoc checklist for the running task,
// backed by the shared C1 store keyed under a fixed namespace per
// session, grounded on the teacher's reminders.ListTool/SetTool CRUD
// shape over a pluggable store.
type TaskListTool struct {
	store     *store.Store
	sessionID string
}

func NewTaskListTool(s *store.Store, sessionID string) *TaskListTool {
	return &TaskListTool{store: s, sessionID: sessionID}
}

func (t *TaskListTool) Name() string            { return "task_list" }
func (t *TaskListTool) Description() string     { return "Add, complete, or list checklist items for the current task." }
func (t *TaskListTool) Category() string        { return "data" }
func (t *TaskListTool) RequiresPermission() bool { return false }

func (t *TaskListTool) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type":"object",
		"properties":{
			"action":{"type":"string","enum":["add","complete","list"]},
			"title":{"type":"string"},
			"id":{"type":"string"}
		},
		"required":["action"]
	}`)
}

func (t *TaskListTool) key() string { return "tasklist:" + t.sessionID }

func (t *TaskListTool) load() []taskItem {
	v, ok := t.store.Get(t.key())
	if !ok {
		return nil
	}
	items, _ := v.([]taskItem)
	return items
}

func (t *TaskListTool) save(items []taskItem) {
	t.store.Set(t.key(), items, 24*time.Hour)
}

func (t *TaskListTool) Execute(ctx context.Context, params json.RawMessage) (*types.ToolResult, error) {
	var input struct {
		Action string `json:"action"`
		Title  string `json:"title"`
		ID     string `json:"id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errResult(err), nil
	}

	items := t.load()
	switch input.Action {
	case "add":
		if input.Title == "" {
			return errMessage("title is required"), nil
		}
		items = append(items, taskItem{ID: nextTaskID(items), Title: input.Title, CreatedAt: time.Now()})
		t.save(items)
	case "complete":
		for i := range items {
			if items[i].ID == input.ID {
				items[i].Done = true
			}
		}
		t.save(items)
	case "list":
		// read-only
	default:
		return errMessage("unknown action: " + input.Action), nil
	}

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	payload, _ := json.Marshal(map[string]any{"items": items})
	return &types.ToolResult{Content: string(payload)}, nil
}

func nextTaskID(items []taskItem) string {
	return "t" + time.Now().UTC().Format("150405.000000000") + "-" + strconv.Itoa(len(items))
}
