// Package report renders XLSX exports for the admin reporting endpoints.
package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hfurst/taskpay/internal/model"
)

// Tasks builds a workbook with one row per task.
func Tasks(tasks []model.Task) (*excelize.File, error) {
	const sheet = "Tasks"
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headers := []string{"ID", "Title", "Priority", "Status", "Earning Status", "Due Date", "Amount", "Progress", "Assignees"}
	if err := setRow(f, sheet, 1, headers); err != nil {
		return nil, err
	}

	for i, t := range tasks {
		names := make([]string, 0, len(t.Assignees))
		for _, a := range t.Assignees {
			names = append(names, a.Name)
		}
		row := []any{
			t.ID, t.Title, t.Priority, t.Status, t.EarningStatus,
			t.DueDate.Format("2006-01-02"), t.Amount.String(), t.Progress,
			strings.Join(names, ", "),
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// UserSummary pairs a user with their task counts for the per-user export.
type UserSummary struct {
	User    model.User
	Summary model.StatusSummary
}

// Users builds a workbook with one row per user: wallet plus task counts.
func Users(summaries []UserSummary) (*excelize.File, error) {
	const sheet = "Users"
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headers := []string{"ID", "Name", "Email", "Wallet", "Total Tasks", "Pending", "In Progress", "Completed"}
	if err := setRow(f, sheet, 1, headers); err != nil {
		return nil, err
	}

	for i, s := range summaries {
		row := []any{
			s.User.ID, s.User.Name, s.User.Email, s.User.Wallet.String(),
			s.Summary.All, s.Summary.Pending, s.Summary.InProgress, s.Summary.Completed,
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func setRow[T any](f *excelize.File, sheet string, row int, values []T) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	return nil
}
