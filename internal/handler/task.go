package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hfurst/taskpay/internal/apperr"
	"github.com/hfurst/taskpay/internal/auth"
	"github.com/hfurst/taskpay/internal/model"
	"github.com/hfurst/taskpay/internal/policy"
	"github.com/hfurst/taskpay/internal/realtime"
	"github.com/hfurst/taskpay/internal/store"
	"github.com/hfurst/taskpay/internal/task"
	"github.com/hfurst/taskpay/internal/upload"
)

type TaskHandler struct {
	tasks   *store.TaskStore
	users   *store.UserStore
	uploads *upload.Store
	hub     *realtime.Hub
	logger  *slog.Logger
}

func NewTaskHandler(ts *store.TaskStore, us *store.UserStore, up *upload.Store, hub *realtime.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: ts, users: us, uploads: up, hub: hub, logger: logger}
}

type checklistItemRequest struct {
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
}

type taskRequest struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Priority    string                 `json:"priority"`
	DueDate     string                 `json:"due_date"`
	Amount      string                 `json:"amount"`
	AssignedTo  []int64                `json:"assigned_to"`
	Checklist   []checklistItemRequest `json:"checklist"`
}

// parseTaskRequest reads a task payload from JSON or multipart form data.
// The multipart variant carries assigned_to and checklist as JSON-encoded
// fields and may attach files under "attachments".
func (h *TaskHandler) parseTaskRequest(r *http.Request) (*taskRequest, []string, error) {
	var req taskRequest
	var attachments []string

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(upload.MaxFileSize); err != nil {
			return nil, nil, apperr.Validation("invalid form data")
		}
		req.Title = r.FormValue("title")
		req.Description = r.FormValue("description")
		req.Priority = r.FormValue("priority")
		req.DueDate = r.FormValue("due_date")
		req.Amount = r.FormValue("amount")
		if v := r.FormValue("assigned_to"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.AssignedTo); err != nil {
				return nil, nil, apperr.Validation("assigned_to must be a JSON array of user ids")
			}
		}
		if v := r.FormValue("checklist"); v != "" {
			if err := json.Unmarshal([]byte(v), &req.Checklist); err != nil {
				return nil, nil, apperr.Validation("checklist must be a JSON array")
			}
		}
		if r.MultipartForm != nil {
			for _, header := range r.MultipartForm.File["attachments"] {
				file, err := header.Open()
				if err != nil {
					return nil, nil, apperr.Validation("unreadable attachment")
				}
				url, err := h.uploads.Save(upload.KindAttachment, header.Filename, file)
				file.Close()
				if err != nil {
					return nil, nil, err
				}
				attachments = append(attachments, url)
			}
		}
	} else {
		if err := decodeJSON(r, &req); err != nil {
			return nil, nil, err
		}
	}
	return &req, attachments, nil
}

func toChecklist(items []checklistItemRequest) []model.ChecklistItem {
	if items == nil {
		return nil
	}
	out := make([]model.ChecklistItem, len(items))
	for i, item := range items {
		out[i] = model.ChecklistItem{Label: item.Label, Completed: item.Completed, Position: i}
	}
	return out
}

// Create makes a new task. Admin only.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentity(r.Context())
	if err := policy.RequireAdmin(id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	req, attachments, err := h.parseTaskRequest(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, h.logger, apperr.Validation("title is required"))
		return
	}
	if req.Priority == "" {
		req.Priority = model.PriorityMedium
	}
	if !task.ValidPriority(req.Priority) {
		writeError(w, h.logger, apperr.Validation("priority must be Low, Medium or High"))
		return
	}
	dueDate, err := time.Parse(time.RFC3339, req.DueDate)
	if err != nil {
		writeError(w, h.logger, apperr.Validation("due_date must be RFC3339 format"))
		return
	}
	amount := decimal.Zero
	if req.Amount != "" {
		amount, err = decimal.NewFromString(req.Amount)
		if err != nil || amount.IsNegative() {
			writeError(w, h.logger, apperr.Validation("amount must be a non-negative number"))
			return
		}
	}
	if len(req.AssignedTo) == 0 {
		writeError(w, h.logger, apperr.Validation("at least one assignee is required"))
		return
	}
	ok, err := h.users.AllExist(req.AssignedTo)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !ok {
		writeError(w, h.logger, apperr.Validation("one or more assignees do not exist"))
		return
	}

	created, err := h.tasks.Create(store.TaskParams{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     dueDate,
		Amount:      &amount,
		CreatedBy:   &id.UserID,
		AssignedTo:  req.AssignedTo,
		Checklist:   toChecklist(req.Checklist),
		Attachments: attachments,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(realtime.Event{Entity: "task", Action: "created", ID: created.ID})
	writeJSON(w, http.StatusCreated, created)
}

type taskListResponse struct {
	Tasks   []taskWithCount     `json:"tasks"`
	Summary model.StatusSummary `json:"summary"`
}

type taskWithCount struct {
	model.Task
	CompletedCount int `json:"completed_count"`
}

// List returns tasks with a per-status summary. Admins see every task,
// users only their own. An optional status query filters the list.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentity(r.Context())

	status := r.URL.Query().Get("status")
	if status != "" && !task.ValidStatus(status) {
		writeError(w, h.logger, apperr.Validation("invalid status filter"))
		return
	}

	var assigneeID *int64
	if !id.IsAdmin() {
		assigneeID = &id.UserID
	}

	tasks, err := h.tasks.List(status, assigneeID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	summary, err := h.tasks.StatusSummary(assigneeID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := taskListResponse{Tasks: make([]taskWithCount, 0, len(tasks)), Summary: summary}
	for _, t := range tasks {
		out.Tasks = append(out.Tasks, taskWithCount{Task: t, CompletedCount: t.CompletedCount()})
	}
	writeJSON(w, http.StatusOK, out)
}

// getAuthorized loads the task and runs the given policy check against it.
func (h *TaskHandler) getAuthorized(w http.ResponseWriter, r *http.Request, check func(auth.Identity, model.Task) error) *model.Task {
	id := auth.MustIdentity(r.Context())

	taskID, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid id"))
		return nil
	}
	t, err := h.tasks.GetByID(taskID)
	if err != nil {
		writeError(w, h.logger, err)
		return nil
	}
	if t == nil {
		writeError(w, h.logger, apperr.NotFound("task not found"))
		return nil
	}
	if err := check(id, *t); err != nil {
		writeError(w, h.logger, err)
		return nil
	}
	return t
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	t := h.getAuthorized(w, r, policy.CanViewTask)
	if t == nil {
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Update applies a partial update. Admin only. Empty fields keep their
// stored values; a present checklist replaces items and re-derives status.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	if err := policy.RequireAdmin(auth.MustIdentity(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}

	taskID, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid id"))
		return
	}
	req, attachments, err := h.parseTaskRequest(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if req.Priority != "" && !task.ValidPriority(req.Priority) {
		writeError(w, h.logger, apperr.Validation("priority must be Low, Medium or High"))
		return
	}
	var dueDate time.Time
	if req.DueDate != "" {
		dueDate, err = time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			writeError(w, h.logger, apperr.Validation("due_date must be RFC3339 format"))
			return
		}
	}
	var amount *decimal.Decimal
	if req.Amount != "" {
		parsed, err := decimal.NewFromString(req.Amount)
		if err != nil || parsed.IsNegative() {
			writeError(w, h.logger, apperr.Validation("amount must be a non-negative number"))
			return
		}
		amount = &parsed
	}
	// A present-but-empty assignee list is rejected rather than applied;
	// it would leave the task with nobody to see or complete it.
	if req.AssignedTo != nil {
		if len(req.AssignedTo) == 0 {
			writeError(w, h.logger, apperr.Validation("at least one assignee is required"))
			return
		}
		ok, err := h.users.AllExist(req.AssignedTo)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		if !ok {
			writeError(w, h.logger, apperr.Validation("one or more assignees do not exist"))
			return
		}
	}

	updated, err := h.tasks.Update(taskID, store.TaskParams{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     dueDate,
		Amount:      amount,
		AssignedTo:  req.AssignedTo,
		Checklist:   toChecklist(req.Checklist),
		Attachments: attachments,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(realtime.Event{Entity: "task", Action: "updated", ID: updated.ID})
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes a task. Admin only. Ledger entries that reference the task
// are kept.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := policy.RequireAdmin(auth.MustIdentity(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}

	taskID, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid id"))
		return
	}
	if err := h.tasks.Delete(taskID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(realtime.Event{Entity: "task", Action: "deleted", ID: taskID})
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type statusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus sets the task status directly. Assignee or admin. Setting
// Completed ticks every checklist item.
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	t := h.getAuthorized(w, r, policy.CanModifyTask)
	if t == nil {
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !task.ValidStatus(req.Status) {
		writeError(w, h.logger, apperr.Validation("invalid status"))
		return
	}

	updated, err := h.tasks.UpdateStatus(t.ID, req.Status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(realtime.Event{Entity: "task", Action: "status", ID: updated.ID})
	writeJSON(w, http.StatusOK, updated)
}

type checklistRequest struct {
	Checklist []checklistItemRequest `json:"checklist"`
}

// UpdateChecklist replaces the checklist; progress and status are derived
// from the new items. Assignee or admin.
func (h *TaskHandler) UpdateChecklist(w http.ResponseWriter, r *http.Request) {
	t := h.getAuthorized(w, r, policy.CanModifyTask)
	if t == nil {
		return
	}

	var req checklistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	updated, err := h.tasks.UpdateChecklist(t.ID, toChecklist(req.Checklist))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(realtime.Event{Entity: "task", Action: "checklist", ID: updated.ID})
	writeJSON(w, http.StatusOK, updated)
}

// SubmitProof uploads a completion proof file. Assignee only; marks the
// task Completed and its earning Pending for admin review.
func (h *TaskHandler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	t := h.getAuthorized(w, r, policy.CanSubmitProof)
	if t == nil {
		return
	}

	if err := r.ParseMultipartForm(upload.MaxFileSize); err != nil {
		writeError(w, h.logger, apperr.Validation("invalid form data"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.logger, apperr.Validation("proof file is required"))
		return
	}
	defer file.Close()

	url, err := h.uploads.Save(upload.KindProof, header.Filename, file)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	updated, err := h.tasks.SubmitProof(t.ID, url)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(realtime.Event{Entity: "task", Action: "submitted", ID: updated.ID})
	writeJSON(w, http.StatusOK, updated)
}

// ApproveEarning approves a submitted task and credits every assignee the
// task amount. Admin only. Idempotence is enforced in the store.
func (h *TaskHandler) ApproveEarning(w http.ResponseWriter, r *http.Request) {
	if err := policy.RequireAdmin(auth.MustIdentity(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}

	taskID, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid id"))
		return
	}
	updated, err := h.tasks.ApproveEarning(taskID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(realtime.Event{Entity: "task", Action: "earning_approved", ID: updated.ID})
	h.hub.Broadcast(realtime.Event{Entity: "wallet", Action: "credited"})
	writeJSON(w, http.StatusOK, updated)
}

// RejectSubmission rejects a submitted task. Admin only. Records a
// zero-amount debit per assignee as an audit trail.
func (h *TaskHandler) RejectSubmission(w http.ResponseWriter, r *http.Request) {
	if err := policy.RequireAdmin(auth.MustIdentity(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}

	taskID, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid id"))
		return
	}
	updated, err := h.tasks.RejectSubmission(taskID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(realtime.Event{Entity: "task", Action: "rejected", ID: updated.ID})
	writeJSON(w, http.StatusOK, updated)
}

// Dashboard returns the admin aggregate: totals, overdue count, and the
// most recent tasks.
func (h *TaskHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if err := policy.RequireAdmin(auth.MustIdentity(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}

	stats, err := h.tasks.DashboardStats(nil, time.Now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// UserDashboard returns the same aggregate scoped to the caller's tasks.
func (h *TaskHandler) UserDashboard(w http.ResponseWriter, r *http.Request) {
	id := auth.MustIdentity(r.Context())

	stats, err := h.tasks.DashboardStats(&id.UserID, time.Now())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
