// Package access holds the authorization predicates for todos and files.
// All predicates are pure functions of records already fetched; callers are
// responsible for re-fetching current state so checks never act on a stale
// row. The admin role grants no bypass here; only the user management
// endpoints are admin-gated.
package access

import (
	"github.com/taskhub/taskhub/internal/models"
)

// CanAccess reports whether the user may read or update the todo:
// true iff the user is the creator or the assignee.
func CanAccess(user *models.User, todo *models.Todo) bool {
	if user == nil || todo == nil {
		return false
	}
	return user.ID == todo.CreatedByID || user.ID == todo.AssignedToID
}

// CanDelete reports whether the user may delete the todo. Only the creator
// may delete; assignees keep read/update access but not delete.
func CanDelete(user *models.User, todo *models.Todo) bool {
	if user == nil || todo == nil {
		return false
	}
	return user.ID == todo.CreatedByID
}

// CanAccessFile reports whether the user may read or delete the attachment.
// Attachment access delegates to the parent todo; a file whose parent does
// not resolve is inaccessible.
func CanAccessFile(user *models.User, file *models.File) bool {
	if user == nil || file == nil || file.Todo == nil {
		return false
	}
	return CanAccess(user, file.Todo)
}
