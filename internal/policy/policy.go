// Package policy holds the capability checks for every operation class.
// Each predicate takes the verified identity and, where relevant, the
// resource it acts on, and returns an authorization error on deny. Handlers
// never compare role strings themselves.
package policy

import (
	"github.com/hfurst/taskpay/internal/apperr"
	"github.com/hfurst/taskpay/internal/auth"
	"github.com/hfurst/taskpay/internal/model"
)

// RequireAdmin gates admin-only operations: task create/update/delete,
// earning approval and rejection, withdrawal resolution, admin finance and
// report export.
func RequireAdmin(id auth.Identity) error {
	if !id.IsAdmin() {
		return apperr.Authorization("admin access required")
	}
	return nil
}

// CanModifyTask gates checklist and status updates: the actor must be an
// assignee of the task, or an admin.
func CanModifyTask(id auth.Identity, t model.Task) error {
	if id.IsAdmin() || t.IsAssignee(id.UserID) {
		return nil
	}
	return apperr.Authorization("not authorized to modify this task")
}

// CanSubmitProof gates proof submission. Only an assignee may submit; an
// admin identity is rejected even though admins manage the task otherwise,
// because the upload is evidence of the assignee's own work.
func CanSubmitProof(id auth.Identity, t model.Task) error {
	if !t.IsAssignee(id.UserID) {
		return apperr.Authorization("only an assignee can submit this task")
	}
	return nil
}

// CanViewTask gates task reads: admins see everything, users only tasks
// assigned to them.
func CanViewTask(id auth.Identity, t model.Task) error {
	if id.IsAdmin() || t.IsAssignee(id.UserID) {
		return nil
	}
	return apperr.Authorization("not authorized to view this task")
}
