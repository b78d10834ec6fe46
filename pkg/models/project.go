package models

// Project is a workspace container owning a totally ordered message
// timeline. The core never mutates a project after creation; soft delete is
// driven by the API surface and cleaned up by the retention runner.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
	// Updated timestamp (ns) - last time timeline activity changed
	UpdatedTS int64 `json:"updated_ts,omitempty"`
	// Deleted marks a project as soft-deleted; DeletedTS records deletion time (ns)
	Deleted   bool  `json:"deleted,omitempty"`
	DeletedTS int64 `json:"deleted_ts,omitempty"`
}
