package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

const (
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
	StatusRejected   = "Rejected"
)

const (
	EarningPending  = "Pending"
	EarningApproved = "Approved"
	EarningRejected = "Rejected"
)

// File kinds for task_files rows.
const (
	FileAttachment = "attachment"
	FileProof      = "proof"
)

type ChecklistItem struct {
	ID        int64  `json:"id"`
	TaskID    int64  `json:"task_id"`
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
	Position  int    `json:"position"`
}

type Task struct {
	ID            int64           `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Priority      string          `json:"priority"`
	Status        string          `json:"status"`
	EarningStatus string          `json:"earning_status"`
	DueDate       time.Time       `json:"due_date"`
	Amount        decimal.Decimal `json:"amount"`
	Progress      int             `json:"progress"`
	CreatedBy     *int64          `json:"created_by"`
	AssignedTo    []int64         `json:"assigned_to"`
	Assignees     []UserSummary   `json:"assignees,omitempty"`
	Checklist     []ChecklistItem `json:"checklist"`
	Attachments   []string        `json:"attachments"`
	UserFiles     []string        `json:"user_files"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CompletedCount reports how many checklist items are ticked.
func (t Task) CompletedCount() int {
	n := 0
	for _, item := range t.Checklist {
		if item.Completed {
			n++
		}
	}
	return n
}

// IsAssignee reports whether userID is one of the task's assignees.
func (t Task) IsAssignee(userID int64) bool {
	for _, id := range t.AssignedTo {
		if id == userID {
			return true
		}
	}
	return false
}

// StatusSummary holds per-status task counts for dashboards.
type StatusSummary struct {
	All        int64 `json:"all"`
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"in_progress"`
	Completed  int64 `json:"completed"`
}

// DashboardStats is the admin/user dashboard aggregate.
type DashboardStats struct {
	TotalTasks     int64  `json:"total_tasks"`
	PendingTasks   int64  `json:"pending_tasks"`
	CompletedTasks int64  `json:"completed_tasks"`
	OverdueTasks   int64  `json:"overdue_tasks"`
	RecentTasks    []Task `json:"recent_tasks"`
}
