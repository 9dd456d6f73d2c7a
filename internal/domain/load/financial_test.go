package load

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightline/service-loads/internal/domain/routing"
)

func TestMarginCents(t *testing.T) {
	fin := NewFinancialSnapshot(200000, 150000)
	assert.Equal(t, int64(50000), fin.MarginCents())

	// Missing driver pay counts as zero.
	fin = NewFinancialSnapshot(200000, 0)
	assert.Equal(t, int64(200000), fin.MarginCents())
}

func TestRatePerMile(t *testing.T) {
	fin := NewFinancialSnapshot(200000, 0)

	// No miles yet: not available, never $0.00/mi.
	_, ok := fin.RatePerMile()
	assert.False(t, ok)

	fin = fin.ApplyResolution(routing.Resolution{DistanceMiles: 925, DurationHours: 14.2})
	rpm, ok := fin.RatePerMile()
	require.True(t, ok)
	assert.InDelta(t, 2.162, rpm, 0.001)
}

func TestDeriveRatePerMile_ZeroAndNegativeMiles(t *testing.T) {
	_, ok := DeriveRatePerMile(100000, 0)
	assert.False(t, ok)

	_, ok = DeriveRatePerMile(100000, -12)
	assert.False(t, ok)
}

func TestApplyResolution_CalculatedMode(t *testing.T) {
	fin := NewFinancialSnapshot(200000, 150000)

	fin = fin.ApplyResolution(routing.Resolution{DistanceMiles: 925, DurationHours: 14.2})

	assert.Equal(t, 925.0, fin.Miles)
	assert.Equal(t, MilesCalculated, fin.MilesSource)
	require.NotNil(t, fin.LastCalculatedMiles)
	assert.Equal(t, 925.0, *fin.LastCalculatedMiles)
	require.NotNil(t, fin.LastCalculatedHours)
	assert.Equal(t, 14.2, *fin.LastCalculatedHours)
}

func TestApplyResolution_DoesNotOverwriteManualMiles(t *testing.T) {
	fin := NewFinancialSnapshot(200000, 150000)
	fin = fin.WithMilesOverride(500)

	// A resolution landing after the override (for example one that was
	// already in flight) must not clobber the user's value.
	fin = fin.ApplyResolution(routing.Resolution{DistanceMiles: 925, DurationHours: 14.2})

	assert.Equal(t, 500.0, fin.Miles)
	assert.Equal(t, MilesManual, fin.MilesSource)
	// But the calculated figure is still recorded for display.
	require.NotNil(t, fin.LastCalculatedMiles)
	assert.Equal(t, 925.0, *fin.LastCalculatedMiles)
}

func TestResetToCalculated_AdoptsLastCalculated(t *testing.T) {
	fin := NewFinancialSnapshot(200000, 150000)
	fin = fin.ApplyResolution(routing.Resolution{DistanceMiles: 925, DurationHours: 14.2})
	fin = fin.WithMilesOverride(500)

	fin = fin.ResetToCalculated()

	assert.Equal(t, MilesCalculated, fin.MilesSource)
	assert.Equal(t, 925.0, fin.Miles)
}

func TestResetToCalculated_NoPriorCalculation(t *testing.T) {
	fin := NewFinancialSnapshot(200000, 150000)
	fin = fin.WithMilesOverride(500)

	fin = fin.ResetToCalculated()

	assert.Equal(t, MilesCalculated, fin.MilesSource)
	// No last calculation to fall back to; the override value stays until a
	// fresh resolution lands.
	assert.Equal(t, 500.0, fin.Miles)
}
