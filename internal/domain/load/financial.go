package load

import (
	"github.com/freightline/service-loads/internal/domain/routing"
)

// MilesSource distinguishes system-calculated mileage from a user override.
type MilesSource string

const (
	MilesCalculated MilesSource = "calculated"
	MilesManual     MilesSource = "manual"
)

// IsValid returns true if the source is recognized.
func (m MilesSource) IsValid() bool {
	return m == MilesCalculated || m == MilesManual
}

// FinancialSnapshot is the derived financial view of a load. Revenue and
// driver pay are user-entered; miles come from either the latest route
// resolution or a manual override. Margin and rate-per-mile are derived,
// never stored.
type FinancialSnapshot struct {
	RevenueCents   int64       `json:"revenue_cents"`
	DriverPayCents int64       `json:"driver_pay_cents"`
	Miles          float64     `json:"miles"`
	MilesSource    MilesSource `json:"miles_source"`

	// Last successful system calculation, kept for informational display
	// even while a manual override is active.
	LastCalculatedMiles *float64 `json:"last_calculated_miles,omitempty"`
	LastCalculatedHours *float64 `json:"last_calculated_hours,omitempty"`
}

// NewFinancialSnapshot creates a snapshot in calculated mode with no miles yet.
func NewFinancialSnapshot(revenueCents, driverPayCents int64) FinancialSnapshot {
	return FinancialSnapshot{
		RevenueCents:   revenueCents,
		DriverPayCents: driverPayCents,
		MilesSource:    MilesCalculated,
	}
}

// MarginCents derives margin as revenue minus driver pay. A missing driver
// pay is treated as zero, so a zero-valued field needs no special casing.
func (f FinancialSnapshot) MarginCents() int64 {
	return f.RevenueCents - f.DriverPayCents
}

// RatePerMile derives revenue per mile in dollars. The second return value
// is false when miles is zero, negative, or absent; callers must render that
// as "not available", never as $0.00/mi.
func (f FinancialSnapshot) RatePerMile() (float64, bool) {
	return DeriveRatePerMile(f.RevenueCents, f.Miles)
}

// DeriveRatePerMile computes dollars per mile from revenue in cents.
func DeriveRatePerMile(revenueCents int64, miles float64) (float64, bool) {
	if miles <= 0 {
		return 0, false
	}
	return float64(revenueCents) / 100 / miles, true
}

// WithRevenue returns a snapshot with updated revenue.
func (f FinancialSnapshot) WithRevenue(revenueCents int64) FinancialSnapshot {
	f.RevenueCents = revenueCents
	return f
}

// WithDriverPay returns a snapshot with updated driver pay.
func (f FinancialSnapshot) WithDriverPay(driverPayCents int64) FinancialSnapshot {
	f.DriverPayCents = driverPayCents
	return f
}

// ApplyResolution folds a successful route resolution into the snapshot.
// The last-calculated figures are always recorded, but the active miles and
// source flip to calculated only when the user has not overridden them: a
// manual value is never silently overwritten, regardless of when an
// in-flight resolution lands.
func (f FinancialSnapshot) ApplyResolution(res routing.Resolution) FinancialSnapshot {
	miles := res.DistanceMiles
	hours := res.DurationHours
	f.LastCalculatedMiles = &miles
	f.LastCalculatedHours = &hours

	if f.MilesSource != MilesManual {
		f.Miles = res.DistanceMiles
		f.MilesSource = MilesCalculated
	}
	return f
}

// WithMilesOverride sets the active miles from a direct user edit. This is
// the only way the snapshot enters manual mode.
func (f FinancialSnapshot) WithMilesOverride(miles float64) FinancialSnapshot {
	f.Miles = miles
	f.MilesSource = MilesManual
	return f
}

// ResetToCalculated clears the manual flag. The caller is expected to
// request a fresh resolution; until it lands, the last calculated value (if
// any) becomes active again.
func (f FinancialSnapshot) ResetToCalculated() FinancialSnapshot {
	f.MilesSource = MilesCalculated
	if f.LastCalculatedMiles != nil {
		f.Miles = *f.LastCalculatedMiles
	}
	return f
}
