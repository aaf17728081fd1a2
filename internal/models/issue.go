package models

import "time"

// IssueStatus represents the state of an issue.
type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "open"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusDone       IssueStatus = "done"
	IssueStatusClosed     IssueStatus = "closed"
)

// IssuePriority represents the urgency of an issue.
type IssuePriority string

const (
	IssuePriorityLow    IssuePriority = "low"
	IssuePriorityMedium IssuePriority = "medium"
	IssuePriorityHigh   IssuePriority = "high"
)

// Issue is a tracked work item. Key is the human-facing identifier
// ("AA-1") and must be unique within Scope. Scope is the id of the parent
// board, or nil for issues that live outside any board. The nil group is
// a uniqueness group of its own.
type Issue struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"projectId"`
	Key         string        `json:"key"`
	Scope       *string       `json:"scope"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      IssueStatus   `json:"status"`
	Priority    IssuePriority `json:"priority"`
	Assignee    string        `json:"assignee"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	ClosedAt    *time.Time    `json:"closedAt,omitempty"`
}
