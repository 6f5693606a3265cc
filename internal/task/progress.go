package task

import (
	"math"

	"github.com/hfurst/taskpay/internal/model"
)

// Progress computes the completion percentage for a checklist, rounded to
// the nearest integer. An empty checklist is 0.
func Progress(items []model.ChecklistItem) int {
	if len(items) == 0 {
		return 0
	}
	completed := 0
	for _, item := range items {
		if item.Completed {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(len(items)) * 100))
}

// DeriveStatus maps a progress percentage onto a task status. This is the
// only legitimate way status follows from checklist state; proof submission
// and admin rejection are the explicit overrides.
func DeriveStatus(progress int) string {
	switch {
	case progress == 100:
		return model.StatusCompleted
	case progress > 0:
		return model.StatusInProgress
	default:
		return model.StatusPending
	}
}

// ValidStatus reports whether s is one of the accepted task statuses.
func ValidStatus(s string) bool {
	switch s {
	case model.StatusPending, model.StatusInProgress, model.StatusCompleted, model.StatusRejected:
		return true
	}
	return false
}

// ValidPriority reports whether p is one of the accepted priorities.
func ValidPriority(p string) bool {
	switch p {
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh:
		return true
	}
	return false
}
