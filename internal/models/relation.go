package models

import (
	"strings"
	"time"

	"github.com/trackerhq/tracker/internal/errs"
)

// RelationType is the kind of link between two issues. Stored as its
// ordinal, so the numeric values are part of the schema.
type RelationType int

const (
	RelationBlocks     RelationType = 0
	RelationDuplicates RelationType = 1
	RelationRelatesTo  RelationType = 2
)

var relationTypeNames = map[RelationType]string{
	RelationBlocks:     "BLOCKS",
	RelationDuplicates: "DUPLICATES",
	RelationRelatesTo:  "RELATES_TO",
}

func (t RelationType) String() string {
	if name, ok := relationTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Valid reports whether t is one of the defined relation types.
func (t RelationType) Valid() bool {
	_, ok := relationTypeNames[t]
	return ok
}

// ParseRelationType resolves a caller-supplied relation type. Accepted
// forms: a numeric ordinal (int or JSON float64), or a symbolic name
// matched case-insensitively with internal whitespace treated as
// underscores ("relates to" == "RELATES_TO"). Anything else is a
// BadRequest echoing the rejected value.
func ParseRelationType(v any) (RelationType, error) {
	switch val := v.(type) {
	case RelationType:
		if val.Valid() {
			return val, nil
		}
	case int:
		if t := RelationType(val); t.Valid() {
			return t, nil
		}
	case int64:
		if t := RelationType(val); t.Valid() {
			return t, nil
		}
	case float64:
		if val == float64(int(val)) {
			if t := RelationType(int(val)); t.Valid() {
				return t, nil
			}
		}
	case string:
		name := strings.ToUpper(strings.TrimSpace(val))
		name = strings.Join(strings.Fields(name), "_")
		for t, n := range relationTypeNames {
			if n == name {
				return t, nil
			}
		}
	}
	return 0, errs.BadRequestf("invalid relation type: %v", v)
}

// IssueRelation is a typed edge between two issues. Storage is directed
// (source, target) but existence is symmetric: at most one edge may exist
// between a pair of issues regardless of direction.
type IssueRelation struct {
	ID            string       `json:"id"`
	SourceIssueID string       `json:"sourceIssueId"`
	TargetIssueID string       `json:"targetIssueId"`
	Type          RelationType `json:"type"`
	TypeName      string       `json:"typeName"`
	CreatedAt     time.Time    `json:"createdAt"`

	// Populated on single-record reads.
	Source *Issue `json:"source,omitempty"`
	Target *Issue `json:"target,omitempty"`
}
