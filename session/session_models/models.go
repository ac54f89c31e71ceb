package session_models

import "github.com/mohammad-safakhou/civicnav/models"

// MergeFunc computes a session's new accumulated resource set from the
// current one. Stores call it while holding the session's lock.
type MergeFunc func(existing []models.Resource) []models.Resource

// Apply appends turn to sess and replaces its resources with merge's result.
// sess is modified in place; callers pass a private copy.
func Apply(sess *models.Session, turn models.Turn, merge MergeFunc) {
	now := turn.CreatedAt
	if now.IsZero() {
		now = sess.UpdatedAt
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.Turns = append(sess.Turns, turn)
	if merge != nil {
		sess.Resources = merge(sess.Resources)
	}
	sess.UpdatedAt = now
}
