package handler

import (
	"log/slog"
	"net/http"

	"github.com/hfurst/taskpay/internal/apperr"
	"github.com/hfurst/taskpay/internal/auth"
	"github.com/hfurst/taskpay/internal/model"
	"github.com/hfurst/taskpay/internal/policy"
	"github.com/hfurst/taskpay/internal/store"
)

type UserHandler struct {
	users  *store.UserStore
	tasks  *store.TaskStore
	logger *slog.Logger
}

func NewUserHandler(us *store.UserStore, ts *store.TaskStore, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: us, tasks: ts, logger: logger}
}

type userWithCounts struct {
	model.User
	PendingTasks    int64 `json:"pending_tasks"`
	InProgressTasks int64 `json:"in_progress_tasks"`
	CompletedTasks  int64 `json:"completed_tasks"`
}

// List returns every user with their per-status task counts. Admin only.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if err := policy.RequireAdmin(auth.MustIdentity(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}

	users, err := h.users.List()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]userWithCounts, 0, len(users))
	for _, u := range users {
		summary, err := h.tasks.StatusSummary(&u.ID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		out = append(out, userWithCounts{
			User:            u,
			PendingTasks:    summary.Pending,
			InProgressTasks: summary.InProgress,
			CompletedTasks:  summary.Completed,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Get returns a single user by id. Admin only.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	if err := policy.RequireAdmin(auth.MustIdentity(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, h.logger, apperr.Validation("invalid id"))
		return
	}

	user, err := h.users.GetByID(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if user == nil {
		writeError(w, h.logger, apperr.NotFound("user not found"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}
