package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackerhq/tracker/internal/errs"
)

func TestParseRelationType(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  RelationType
		ok    bool
	}{
		{"ordinal int", 0, RelationBlocks, true},
		{"ordinal float from JSON", float64(1), RelationDuplicates, true},
		{"exact name", "BLOCKS", RelationBlocks, true},
		{"lowercase", "duplicates", RelationDuplicates, true},
		{"space for underscore", "relates to", RelationRelatesTo, true},
		{"mixed case padded", "  Relates_To ", RelationRelatesTo, true},
		{"out of range ordinal", 7, 0, false},
		{"fractional number", 1.5, 0, false},
		{"unknown name", "CAUSES", 0, false},
		{"wrong type", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRelationType(tt.input)
			if !tt.ok {
				require.Error(t, err)
				assert.Equal(t, errs.BadRequest, errs.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRelationType_EchoesValue(t *testing.T) {
	_, err := ParseRelationType("CAUSES")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CAUSES")
}

func TestParsePermission(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  Permission
		ok    bool
	}{
		{"ordinal", 2, PermissionAdministrator, true},
		{"float from JSON", float64(0), PermissionMember, true},
		{"name", "MODERATOR", PermissionModerator, true},
		{"lowercase", "member", PermissionMember, true},
		{"out of range", 5, 0, false},
		{"unknown name", "OWNER", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePermission(tt.input)
			if !tt.ok {
				require.Error(t, err)
				assert.Equal(t, errs.BadRequest, errs.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPermissionOrdering(t *testing.T) {
	assert.True(t, PermissionMember < PermissionModerator)
	assert.True(t, PermissionModerator < PermissionAdministrator)
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "RELATES_TO", RelationRelatesTo.String())
	assert.Equal(t, "ADMINISTRATOR", PermissionAdministrator.String())
	assert.Equal(t, "UNKNOWN", RelationType(9).String())
	assert.Equal(t, "UNKNOWN", Permission(9).String())
}
