package models

import "time"

// Epic groups issues under a larger body of work. Like issues, an epic
// carries a human-facing Key unique within its (nullable) Scope.
type Epic struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"projectId"`
	Key         string      `json:"key"`
	Scope       *string     `json:"scope"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Status      IssueStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}
