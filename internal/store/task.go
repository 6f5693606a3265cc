package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hfurst/taskpay/internal/apperr"
	"github.com/hfurst/taskpay/internal/model"
	"github.com/hfurst/taskpay/internal/task"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var createdBy sql.NullInt64
	err := scanner.Scan(
		&t.ID, &t.Title, &t.Description, &t.Priority, &t.Status, &t.EarningStatus,
		&t.DueDate, &t.Amount, &t.Progress, &createdBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if createdBy.Valid {
		t.CreatedBy = &createdBy.Int64
	}
	return &t, nil
}

const taskCols = `id, title, description, priority, status, earning_status, due_date, amount, progress, created_by, created_at, updated_at`

// TaskParams carries the admin-owned fields for create and update. On
// update, nil slices and a nil Amount mean "leave unchanged"; an amount
// of zero is a valid value, so presence is signalled by the pointer.
type TaskParams struct {
	Title       string
	Description string
	Priority    string
	DueDate     time.Time
	Amount      *decimal.Decimal
	CreatedBy   *int64
	AssignedTo  []int64
	Checklist   []model.ChecklistItem
	Attachments []string
}

func (s *TaskStore) Create(p TaskParams) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	progress := task.Progress(p.Checklist)
	var createdBy sql.NullInt64
	if p.CreatedBy != nil {
		createdBy = sql.NullInt64{Int64: *p.CreatedBy, Valid: true}
	}
	amount := decimal.Zero
	if p.Amount != nil {
		amount = *p.Amount
	}

	result, err := tx.Exec(
		`INSERT INTO tasks (title, description, priority, due_date, amount, progress, created_by) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.Description, p.Priority, p.DueDate.UTC(), amount, progress, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := replaceAssignees(tx, id, p.AssignedTo); err != nil {
		return nil, err
	}
	if err := replaceChecklist(tx, id, p.Checklist); err != nil {
		return nil, err
	}
	for _, url := range p.Attachments {
		if _, err := tx.Exec(
			`INSERT INTO task_files (task_id, kind, url) VALUES (?, ?, ?)`,
			id, model.FileAttachment, url,
		); err != nil {
			return nil, fmt.Errorf("insert attachment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if err := s.loadRelations(t); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns tasks newest-first, optionally filtered by status and by
// assignee (nil assignee means all tasks).
func (s *TaskStore) List(status string, assigneeID *int64) ([]model.Task, error) {
	query := `SELECT ` + taskCols + ` FROM tasks`
	var where []string
	var args []any
	if status != "" {
		where = append(where, `status = ?`)
		args = append(args, status)
	}
	if assigneeID != nil {
		where = append(where, `id IN (SELECT task_id FROM task_assignees WHERE user_id = ?)`)
		args = append(args, *assigneeID)
	}
	for i, clause := range where {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range tasks {
		if err := s.loadRelations(&tasks[i]); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

// Update applies a partial admin update. Zero-value fields keep the stored
// value; a non-nil checklist replaces the items and recomputes progress and
// the derived status; attachments are appended, never removed.
func (s *TaskStore) Update(id int64, p TaskParams) (*model.Task, error) {
	existing, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.NotFound("task not found")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	title := existing.Title
	if p.Title != "" {
		title = p.Title
	}
	description := existing.Description
	if p.Description != "" {
		description = p.Description
	}
	priority := existing.Priority
	if p.Priority != "" {
		priority = p.Priority
	}
	dueDate := existing.DueDate
	if !p.DueDate.IsZero() {
		dueDate = p.DueDate.UTC()
	}
	amount := existing.Amount
	if p.Amount != nil {
		amount = *p.Amount
	}

	progress := existing.Progress
	status := existing.Status
	if p.Checklist != nil {
		if err := replaceChecklist(tx, id, p.Checklist); err != nil {
			return nil, err
		}
		progress = task.Progress(p.Checklist)
		status = task.DeriveStatus(progress)
	}
	if p.AssignedTo != nil {
		// An explicit empty list would strip every assignee and orphan
		// the task; a valid task always has at least one.
		if len(p.AssignedTo) == 0 {
			return nil, apperr.Validation("at least one assignee is required")
		}
		if err := replaceAssignees(tx, id, p.AssignedTo); err != nil {
			return nil, err
		}
	}
	for _, url := range p.Attachments {
		if _, err := tx.Exec(
			`INSERT INTO task_files (task_id, kind, url) VALUES (?, ?, ?)`,
			id, model.FileAttachment, url,
		); err != nil {
			return nil, fmt.Errorf("insert attachment: %w", err)
		}
	}

	_, err = tx.Exec(
		`UPDATE tasks SET title = ?, description = ?, priority = ?, due_date = ?, amount = ?, progress = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, description, priority, dueDate, amount, progress, status, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// UpdateChecklist replaces the checklist and recomputes progress and status
// from it. The derived status overwrites any manually set one.
func (s *TaskStore) UpdateChecklist(id int64, items []model.ChecklistItem) (*model.Task, error) {
	existing, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.NotFound("task not found")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := replaceChecklist(tx, id, items); err != nil {
		return nil, err
	}

	progress := task.Progress(items)
	status := task.DeriveStatus(progress)
	if _, err := tx.Exec(
		`UPDATE tasks SET progress = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		progress, status, id,
	); err != nil {
		return nil, fmt.Errorf("update progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// UpdateStatus sets the task status directly. Completing a task this way
// ticks every checklist item so progress stays consistent at 100.
func (s *TaskStore) UpdateStatus(id int64, status string) (*model.Task, error) {
	existing, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.NotFound("task not found")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	progress := existing.Progress
	if status == model.StatusCompleted {
		if _, err := tx.Exec(`UPDATE checklist_items SET completed = 1 WHERE task_id = ?`, id); err != nil {
			return nil, fmt.Errorf("complete checklist: %w", err)
		}
		progress = 100
	}

	if _, err := tx.Exec(
		`UPDATE tasks SET status = ?, progress = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, progress, id,
	); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// SubmitProof records an assignee's completion file and moves the task to
// Completed with earning back under admin review, regardless of checklist
// state. This is one of the two explicit status override paths.
func (s *TaskStore) SubmitProof(id int64, fileURL string) (*model.Task, error) {
	existing, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.NotFound("task not found")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO task_files (task_id, kind, url) VALUES (?, ?, ?)`,
		id, model.FileProof, fileURL,
	); err != nil {
		return nil, fmt.Errorf("insert proof file: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE tasks SET status = ?, earning_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		model.StatusCompleted, model.EarningPending, id,
	); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// ApproveEarning credits every assignee's wallet with the task amount and
// marks the earning approved, all in one transaction. The status flip is a
// conditional update so two concurrent approvals cannot both credit: only
// the call whose UPDATE matched performs the wallet writes. Amount, title,
// and assignees are read inside the same transaction so a concurrent admin
// update cannot make the credits stale.
func (s *TaskStore) ApproveEarning(id int64) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE tasks SET earning_status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ? AND earning_status <> ?`,
		model.EarningApproved, id, model.StatusCompleted, model.EarningApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("mark approved: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Re-read inside the transaction to tell a missing task, an
		// already-approved earning, and an incomplete task apart.
		var status, earningStatus string
		err := tx.QueryRow(`SELECT status, earning_status FROM tasks WHERE id = ?`, id).Scan(&status, &earningStatus)
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("task not found")
		}
		if err != nil {
			return nil, fmt.Errorf("read task state: %w", err)
		}
		if earningStatus == model.EarningApproved {
			return nil, apperr.Conflict("earning already approved")
		}
		return nil, apperr.Conflict("task not completed yet")
	}

	var title string
	var amount decimal.Decimal
	if err := tx.QueryRow(`SELECT title, amount FROM tasks WHERE id = ?`, id).Scan(&title, &amount); err != nil {
		return nil, fmt.Errorf("read task: %w", err)
	}
	assignees, err := assigneeIDs(tx, id)
	if err != nil {
		return nil, err
	}

	for _, userID := range assignees {
		if _, err := tx.Exec(
			`UPDATE users SET wallet = wallet + CAST(? AS NUMERIC), updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			amount, userID,
		); err != nil {
			return nil, fmt.Errorf("credit wallet: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO transactions (user_id, task_id, amount, type, description) VALUES (?, ?, ?, ?, ?)`,
			userID, id, amount, model.TransactionCredit, "Earning for task: "+title,
		); err != nil {
			return nil, fmt.Errorf("insert credit: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// RejectSubmission moves the task to Rejected on both axes and writes a
// zero-amount debit per assignee as an audit trail. Approved work cannot be
// retroactively rejected; the guard is the same conditional-update pattern
// as approval, and the audit rows use the title and assignee set read
// inside the transaction.
func (s *TaskStore) RejectSubmission(id int64) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE tasks SET status = ?, earning_status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND earning_status <> ?`,
		model.StatusRejected, model.EarningRejected, id, model.EarningApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("mark rejected: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var earningStatus string
		err := tx.QueryRow(`SELECT earning_status FROM tasks WHERE id = ?`, id).Scan(&earningStatus)
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("task not found")
		}
		if err != nil {
			return nil, fmt.Errorf("read task state: %w", err)
		}
		return nil, apperr.Conflict("earning already approved, cannot reject")
	}

	var title string
	if err := tx.QueryRow(`SELECT title FROM tasks WHERE id = ?`, id).Scan(&title); err != nil {
		return nil, fmt.Errorf("read task: %w", err)
	}
	assignees, err := assigneeIDs(tx, id)
	if err != nil {
		return nil, err
	}

	for _, userID := range assignees {
		if _, err := tx.Exec(
			`INSERT INTO transactions (user_id, task_id, amount, type, description) VALUES (?, ?, 0, ?, ?)`,
			userID, id, model.TransactionDebit, "Task rejected by admin: "+title,
		); err != nil {
			return nil, fmt.Errorf("insert rejection record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes the task. Ledger entries referencing it are kept; their
// task_id dangles on purpose so financial history survives.
func (s *TaskStore) Delete(id int64) error {
	result, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound("task not found")
	}
	return nil
}

// StatusSummary counts tasks per status, optionally scoped to an assignee.
func (s *TaskStore) StatusSummary(assigneeID *int64) (model.StatusSummary, error) {
	var sum model.StatusSummary
	count := func(status string) (int64, error) {
		query := `SELECT COUNT(*) FROM tasks`
		var args []any
		if status != "" {
			query += ` WHERE status = ?`
			args = append(args, status)
		}
		if assigneeID != nil {
			if status == "" {
				query += ` WHERE`
			} else {
				query += ` AND`
			}
			query += ` id IN (SELECT task_id FROM task_assignees WHERE user_id = ?)`
			args = append(args, *assigneeID)
		}
		var n int64
		err := s.db.QueryRow(query, args...).Scan(&n)
		return n, err
	}

	var err error
	if sum.All, err = count(""); err != nil {
		return sum, fmt.Errorf("count all: %w", err)
	}
	if sum.Pending, err = count(model.StatusPending); err != nil {
		return sum, fmt.Errorf("count pending: %w", err)
	}
	if sum.InProgress, err = count(model.StatusInProgress); err != nil {
		return sum, fmt.Errorf("count in progress: %w", err)
	}
	if sum.Completed, err = count(model.StatusCompleted); err != nil {
		return sum, fmt.Errorf("count completed: %w", err)
	}
	return sum, nil
}

// DashboardStats aggregates totals, overdue count, and the ten most recent
// tasks, optionally scoped to an assignee.
func (s *TaskStore) DashboardStats(assigneeID *int64, now time.Time) (model.DashboardStats, error) {
	var stats model.DashboardStats

	sum, err := s.StatusSummary(assigneeID)
	if err != nil {
		return stats, err
	}
	stats.TotalTasks = sum.All
	stats.PendingTasks = sum.Pending
	stats.CompletedTasks = sum.Completed

	query := `SELECT COUNT(*) FROM tasks WHERE status <> ? AND due_date < ?`
	args := []any{model.StatusCompleted, now.UTC()}
	if assigneeID != nil {
		query += ` AND id IN (SELECT task_id FROM task_assignees WHERE user_id = ?)`
		args = append(args, *assigneeID)
	}
	if err := s.db.QueryRow(query, args...).Scan(&stats.OverdueTasks); err != nil {
		return stats, fmt.Errorf("count overdue: %w", err)
	}

	recentQuery := `SELECT ` + taskCols + ` FROM tasks`
	var recentArgs []any
	if assigneeID != nil {
		recentQuery += ` WHERE id IN (SELECT task_id FROM task_assignees WHERE user_id = ?)`
		recentArgs = append(recentArgs, *assigneeID)
	}
	recentQuery += ` ORDER BY created_at DESC, id DESC LIMIT 10`

	rows, err := s.db.Query(recentQuery, recentArgs...)
	if err != nil {
		return stats, fmt.Errorf("recent tasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return stats, fmt.Errorf("scan task: %w", err)
		}
		stats.RecentTasks = append(stats.RecentTasks, *t)
	}
	return stats, rows.Err()
}

// --- relation loading ---

func (s *TaskStore) loadRelations(t *model.Task) error {
	rows, err := s.db.Query(
		`SELECT u.id, u.name, u.email, u.profile_image_url
		 FROM task_assignees ta JOIN users u ON u.id = ta.user_id
		 WHERE ta.task_id = ? ORDER BY u.id ASC`,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("load assignees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u model.UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.ProfileImageURL); err != nil {
			return fmt.Errorf("scan assignee: %w", err)
		}
		t.AssignedTo = append(t.AssignedTo, u.ID)
		t.Assignees = append(t.Assignees, u)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	itemRows, err := s.db.Query(
		`SELECT id, task_id, label, completed, position FROM checklist_items WHERE task_id = ? ORDER BY position ASC, id ASC`,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("load checklist: %w", err)
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var item model.ChecklistItem
		if err := itemRows.Scan(&item.ID, &item.TaskID, &item.Label, &item.Completed, &item.Position); err != nil {
			return fmt.Errorf("scan checklist item: %w", err)
		}
		t.Checklist = append(t.Checklist, item)
	}
	if err := itemRows.Err(); err != nil {
		return err
	}

	fileRows, err := s.db.Query(
		`SELECT kind, url FROM task_files WHERE task_id = ? ORDER BY id ASC`,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("load files: %w", err)
	}
	defer fileRows.Close()
	for fileRows.Next() {
		var kind, url string
		if err := fileRows.Scan(&kind, &url); err != nil {
			return fmt.Errorf("scan file: %w", err)
		}
		if kind == model.FileProof {
			t.UserFiles = append(t.UserFiles, url)
		} else {
			t.Attachments = append(t.Attachments, url)
		}
	}
	return fileRows.Err()
}

// assigneeIDs reads the current assignee set within the given transaction.
func assigneeIDs(tx *sql.Tx, taskID int64) ([]int64, error) {
	rows, err := tx.Query(`SELECT user_id FROM task_assignees WHERE task_id = ? ORDER BY user_id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("load assignees: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func replaceAssignees(tx *sql.Tx, taskID int64, userIDs []int64) error {
	if _, err := tx.Exec(`DELETE FROM task_assignees WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear assignees: %w", err)
	}
	for _, userID := range unique(userIDs) {
		if _, err := tx.Exec(
			`INSERT INTO task_assignees (task_id, user_id) VALUES (?, ?)`,
			taskID, userID,
		); err != nil {
			return fmt.Errorf("insert assignee: %w", err)
		}
	}
	return nil
}

func replaceChecklist(tx *sql.Tx, taskID int64, items []model.ChecklistItem) error {
	if _, err := tx.Exec(`DELETE FROM checklist_items WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear checklist: %w", err)
	}
	for i, item := range items {
		if _, err := tx.Exec(
			`INSERT INTO checklist_items (task_id, label, completed, position) VALUES (?, ?, ?, ?)`,
			taskID, item.Label, item.Completed, i,
		); err != nil {
			return fmt.Errorf("insert checklist item: %w", err)
		}
	}
	return nil
}
