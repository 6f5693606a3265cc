package handler

import (
	"log/slog"
	"net/http"

	"github.com/hfurst/taskpay/internal/auth"
	"github.com/hfurst/taskpay/internal/policy"
	"github.com/hfurst/taskpay/internal/report"
	"github.com/hfurst/taskpay/internal/store"
)

type ReportHandler struct {
	tasks  *store.TaskStore
	users  *store.UserStore
	logger *slog.Logger
}

func NewReportHandler(ts *store.TaskStore, us *store.UserStore, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{tasks: ts, users: us, logger: logger}
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportTasks streams an XLSX of every task. Admin only.
func (h *ReportHandler) ExportTasks(w http.ResponseWriter, r *http.Request) {
	if err := policy.RequireAdmin(auth.MustIdentity(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}

	tasks, err := h.tasks.List("", nil)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	f, err := report.Tasks(tasks)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="tasks_report.xlsx"`)
	if err := f.Write(w); err != nil {
		h.logger.Error("write tasks report", "error", err)
	}
}

// ExportUsers streams an XLSX of every user with their task counts. Admin only.
func (h *ReportHandler) ExportUsers(w http.ResponseWriter, r *http.Request) {
	if err := policy.RequireAdmin(auth.MustIdentity(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}

	users, err := h.users.List()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	summaries := make([]report.UserSummary, 0, len(users))
	for _, u := range users {
		summary, err := h.tasks.StatusSummary(&u.ID)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		summaries = append(summaries, report.UserSummary{User: u, Summary: summary})
	}

	f, err := report.Users(summaries)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="users_report.xlsx"`)
	if err := f.Write(w); err != nil {
		h.logger.Error("write users report", "error", err)
	}
}
