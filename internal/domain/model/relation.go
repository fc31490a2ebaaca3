package model

import "time"

// TranslatorJobRelation links a translator to a booking. Reassignment never
// mutates an existing relation's translator: the old relation is cancelled
// and a new one created, preserving an append-only audit trail.
//
// At most one relation per job may have both CancelAt and CompletedAt unset
// (the "active" relation); the data layer enforces this with a partial
// unique index.
type TranslatorJobRelation struct {
	ID           string     `json:"id"                     db:"id"`
	JobID        string     `json:"job_id"                 db:"job_id"`
	TranslatorID string     `json:"translator_id"          db:"translator_id"`
	AssignedAt   time.Time  `json:"assigned_at"            db:"assigned_at"`
	CancelAt     *time.Time `json:"cancel_at,omitempty"    db:"cancel_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CompletedBy  *string    `json:"completed_by,omitempty" db:"completed_by"`
}

// Active reports whether the relation is neither cancelled nor completed.
func (r *TranslatorJobRelation) Active() bool {
	return r != nil && r.CancelAt == nil && r.CompletedAt == nil
}
