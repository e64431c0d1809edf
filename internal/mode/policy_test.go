package mode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vigil/pkg/domain-errors"
)

func TestCapabilitiesFor(t *testing.T) {
	t.Run("standby allows only watermarks and synthetic data", func(t *testing.T) {
		assert.Equal(t, Config{AddWatermarks: true, UseSyntheticData: true}, CapabilitiesFor(Standby))
	})

	t.Run("demo allows everything but export", func(t *testing.T) {
		assert.Equal(t, Config{
			AllowNetworkCalls:        true,
			AllowFileUpload:          true,
			AllowExport:              false,
			AllowAIGeneration:        true,
			RequireApprovalForExport: true,
			AddWatermarks:            true,
			UseSyntheticData:         true,
		}, CapabilitiesFor(Demo))
	})

	t.Run("live allows export but still requires approval", func(t *testing.T) {
		assert.Equal(t, Config{
			AllowNetworkCalls:        true,
			AllowFileUpload:          true,
			AllowExport:              true,
			AllowAIGeneration:        true,
			RequireApprovalForExport: true,
			AddWatermarks:            false,
			UseSyntheticData:         false,
		}, CapabilitiesFor(Live))
	})

	t.Run("unknown mode gets the standby row", func(t *testing.T) {
		assert.Equal(t, CapabilitiesFor(Standby), CapabilitiesFor(Mode("PRODUCTION")))
		assert.Equal(t, CapabilitiesFor(Standby), CapabilitiesFor(""))
	})
}

func TestResolve(t *testing.T) {
	cases := []struct {
		name     string
		explicit string
		legacy   string
		want     Mode
	}{
		{"explicit wins over legacy", "live", "demo", Live},
		{"explicit wins even when more restrictive", "standby", "live", Standby},
		{"legacy used when explicit missing", "", "DEMO", Demo},
		{"unrecognized explicit never falls back to a permissive legacy", "production", "live", Standby},
		{"unrecognized explicit with restrictive legacy", "prod", "standby", Standby},
		{"unrecognized legacy alone", "", "turbo", Standby},
		{"no signal at all", "", "", Standby},
		{"whitespace and case tolerated", "  Live ", "", Live},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.explicit, tc.legacy))
		})
	}
}

func TestIsCallAllowed(t *testing.T) {
	t.Run("standby blocks", func(t *testing.T) {
		assert.Equal(t, Decision{Reason: ReasonStandby}, IsCallAllowed(Standby, false))
	})

	t.Run("kill switch blocks in live", func(t *testing.T) {
		assert.Equal(t, Decision{Reason: ReasonNoNetwork}, IsCallAllowed(Live, true))
	})

	t.Run("kill switch blocks in demo", func(t *testing.T) {
		assert.Equal(t, Decision{Reason: ReasonNoNetwork}, IsCallAllowed(Demo, true))
	})

	t.Run("standby reason takes precedence over kill switch", func(t *testing.T) {
		assert.Equal(t, ReasonStandby, IsCallAllowed(Standby, true).Reason)
	})

	t.Run("live and demo allowed without kill switch", func(t *testing.T) {
		assert.Equal(t, Decision{Allowed: true}, IsCallAllowed(Live, false))
		assert.Equal(t, Decision{Allowed: true}, IsCallAllowed(Demo, false))
	})

	t.Run("unknown mode fails closed", func(t *testing.T) {
		assert.False(t, IsCallAllowed(Mode("UNKNOWN"), false).Allowed)
	})

	t.Run("unrecognized signal with restrictive legacy is blocked", func(t *testing.T) {
		assert.False(t, IsCallAllowed(Resolve("bogus", "standby"), false).Allowed)
	})
}

func TestGate(t *testing.T) {
	require.NoError(t, Gate(Live, false))

	err := Gate(Live, true)
	require.True(t, dErrors.HasCode(err, dErrors.CodeCallBlocked))
	var blocked *BlockedError
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, ReasonNoNetwork, blocked.Reason)

	err = Gate(Standby, false)
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, ReasonStandby, blocked.BlockReason())
}

func TestValidTransition(t *testing.T) {
	modes := []Mode{Standby, Demo, Live}
	allowed := map[[2]Mode]bool{
		{Standby, Demo}: true,
		{Demo, Live}:    true,
		{Demo, Standby}: true,
		{Live, Demo}:    true,
	}
	for _, from := range modes {
		for _, to := range modes {
			t.Run(from.String()+"->"+to.String(), func(t *testing.T) {
				assert.Equal(t, allowed[[2]Mode{from, to}], ValidTransition(from, to))
			})
		}
	}

	t.Run("standby cannot jump to live", func(t *testing.T) {
		assert.False(t, ValidTransition(Standby, Live))
	})
	t.Run("unknown modes never transition", func(t *testing.T) {
		assert.False(t, ValidTransition(Mode("X"), Demo))
		assert.False(t, ValidTransition(Demo, Mode("X")))
	})
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("demo")
	assert.True(t, ok)
	assert.Equal(t, Demo, m)

	_, ok = ParseMode("sandbox")
	assert.False(t, ok)
}
