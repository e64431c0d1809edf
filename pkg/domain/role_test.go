package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vigil/pkg/domain-errors"
)

func TestRole_Privilege(t *testing.T) {
	tests := []struct {
		role       Role
		canApprove bool
	}{
		{RoleViewer, false},
		{RoleResearcher, false},
		{RoleSteward, true},
		{RoleAdmin, true},
		{Role("SUPERUSER"), false},
		{Role(""), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.canApprove, tt.role.CanApprove())
		})
	}

	t.Run("admin outranks steward", func(t *testing.T) {
		assert.True(t, RoleAdmin.AtLeast(RoleSteward))
		assert.False(t, RoleSteward.AtLeast(RoleAdmin))
	})
}

func TestParseRole(t *testing.T) {
	t.Run("accepts any case", func(t *testing.T) {
		r, err := ParseRole(" steward ")
		require.NoError(t, err)
		assert.Equal(t, RoleSteward, r)
	})

	t.Run("rejects unknown roles", func(t *testing.T) {
		_, err := ParseRole("root")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestParseIDs(t *testing.T) {
	t.Run("rejects empty and malformed ids", func(t *testing.T) {
		for _, in := range []string{"", "not-a-uuid", "00000000-0000-0000-0000-000000000000"} {
			_, err := ParseScanID(in)
			require.Error(t, err, in)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})

	t.Run("round trips generated ids", func(t *testing.T) {
		id := NewExportID()
		parsed, err := ParseExportID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})
}
