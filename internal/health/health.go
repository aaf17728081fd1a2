// Package health scores how well a project's backlog is being worked.
package health

import (
	"time"

	"github.com/trackerhq/tracker/internal/models"
)

// PulseScore represents the computed pulse of a project.
type PulseScore struct {
	Total              int `json:"total"`
	BacklogHealth      int `json:"backlogHealth"`      // 0-30
	ActivityRecency    int `json:"activityRecency"`    // 0-30
	AssignmentCoverage int `json:"assignmentCoverage"` // 0-20
	EpicProgress       int `json:"epicProgress"`       // 0-20
}

// Scorer computes pulse scores for projects.
type Scorer struct{}

// NewScorer returns a new pulse Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score computes a pulse score (0-100) for a project from its issues and
// epics.
func (s *Scorer) Score(issues []*models.Issue, epics []*models.Epic) *PulseScore {
	p := &PulseScore{}

	// Backlog health (30 pts) - fewer open issues relative to total = better
	p.BacklogHealth = scoreBacklog(issues, 30)

	// Activity recency (30 pts) - recently touched issues = more points
	p.ActivityRecency = scoreRecency(latestUpdate(issues), 30)

	// Assignment coverage (20 pts) - open issues with an assignee
	p.AssignmentCoverage = scoreAssignment(issues, 20)

	// Epic progress (20 pts) - share of epics done
	p.EpicProgress = scoreEpics(epics, 20)

	p.Total = p.BacklogHealth + p.ActivityRecency + p.AssignmentCoverage + p.EpicProgress
	return p
}

func latestUpdate(issues []*models.Issue) time.Time {
	var latest time.Time
	for _, i := range issues {
		if i.UpdatedAt.After(latest) {
			latest = i.UpdatedAt
		}
	}
	return latest
}

// scoreRecency converts time since last activity to points.
func scoreRecency(t time.Time, maxPoints int) int {
	if t.IsZero() {
		return 0
	}
	days := int(time.Since(t).Hours() / 24)
	switch {
	case days <= 1:
		return maxPoints
	case days <= 3:
		return int(float64(maxPoints) * 0.9)
	case days <= 7:
		return int(float64(maxPoints) * 0.75)
	case days <= 14:
		return int(float64(maxPoints) * 0.6)
	case days <= 30:
		return int(float64(maxPoints) * 0.4)
	case days <= 90:
		return int(float64(maxPoints) * 0.2)
	default:
		return int(float64(maxPoints) * 0.1)
	}
}

// scoreBacklog computes backlog health from the open ratio.
func scoreBacklog(issues []*models.Issue, maxPoints int) int {
	if len(issues) == 0 {
		return maxPoints // no issues = healthy
	}

	open := 0
	for _, i := range issues {
		if i.Status == models.IssueStatusOpen || i.Status == models.IssueStatusInProgress {
			open++
		}
	}

	ratio := float64(open) / float64(len(issues))
	// Lower open ratio = better health
	return int(float64(maxPoints) * (1 - ratio*0.8))
}

// scoreAssignment rewards open issues having an owner.
func scoreAssignment(issues []*models.Issue, maxPoints int) int {
	open, assigned := 0, 0
	for _, i := range issues {
		if i.Status == models.IssueStatusOpen || i.Status == models.IssueStatusInProgress {
			open++
			if i.Assignee != "" {
				assigned++
			}
		}
	}
	if open == 0 {
		return maxPoints
	}
	return int(float64(maxPoints) * float64(assigned) / float64(open))
}

// scoreEpics rewards epics reaching done.
func scoreEpics(epics []*models.Epic, maxPoints int) int {
	if len(epics) == 0 {
		return maxPoints / 2 // no epics: neutral
	}
	done := 0
	for _, e := range epics {
		if e.Status == models.IssueStatusDone || e.Status == models.IssueStatusClosed {
			done++
		}
	}
	return int(float64(maxPoints) * float64(done) / float64(len(epics)))
}
