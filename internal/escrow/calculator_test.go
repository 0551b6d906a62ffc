package escrow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rently-backend/internal/domain"
)

func TestCommissionSplit(t *testing.T) {
	calc := DefaultCalculator()

	tests := []struct {
		name       string
		price      int64
		owner      int64
		commission int64
	}{
		{"Round price", 100, 93, 7},
		{"Rounds half up", 50, 46, 4},  // 3.5 -> 4
		{"Rounds down", 130, 121, 9},   // 9.1 -> 9
		{"Small price", 7, 7, 0},       // 0.49 -> 0
		{"Zero price", 0, 0, 0},
		{"Large price", 1234567, 1148147, 86420},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split := calc.CommissionSplit(tt.price)
			assert.Equal(t, tt.owner, split.OwnerAmount)
			assert.Equal(t, tt.commission, split.CommissionAmount)
		})
	}
}

func TestCommissionSplit_Conservation(t *testing.T) {
	rate := decimal.NewFromFloat(DefaultCommissionRate)
	for price := int64(1); price <= 5000; price += 7 {
		split := SplitCommission(price, rate)
		assert.Equal(t, price, split.OwnerAmount+split.CommissionAmount, "price %d", price)
		assert.GreaterOrEqual(t, split.CommissionAmount, int64(0))
	}
}

func TestLateFee(t *testing.T) {
	tests := []struct {
		name       string
		rentalType domain.RentalType
		quantity   int
		price      int64
		lateDays   int
		expected   int64
	}{
		{"Daily two days late", domain.RentalTypeDaily, 10, 100, 2, 20},
		{"Daily on time", domain.RentalTypeDaily, 10, 100, 0, 0},
		{"Daily negative late days", domain.RentalTypeDaily, 10, 100, -1, 0},
		{"Daily at limit", domain.RentalTypeDaily, 30, 300, 1, 10},
		{"Daily long rental exempt", domain.RentalTypeDaily, 31, 310, 3, 0},
		{"Weekly uses seven day rate", domain.RentalTypeWeekly, 2, 140, 3, 60},
		{"Weekly at limit", domain.RentalTypeWeekly, 4, 70, 1, 10},
		{"Weekly long rental exempt", domain.RentalTypeWeekly, 5, 700, 2, 0},
		{"Weekly rounds", domain.RentalTypeWeekly, 1, 100, 1, 14}, // 14.28 -> 14
		{"Unknown type", domain.RentalType("monthly"), 1, 100, 1, 0},
		{"Zero quantity", domain.RentalTypeDaily, 0, 100, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LateFee(tt.rentalType, tt.quantity, tt.price, tt.lateDays))
		})
	}
}

func TestNoShowPenalty(t *testing.T) {
	calc := DefaultCalculator()

	assert.Equal(t, int64(10), calc.NoShowPenalty(100))
	assert.Equal(t, int64(1), calc.NoShowPenalty(11))
	assert.Equal(t, int64(0), calc.NoShowPenalty(10), "threshold is exclusive")
	assert.Equal(t, int64(0), calc.NoShowPenalty(5))
	assert.Equal(t, int64(4), calc.NoShowPenalty(35)) // 3.5 -> 4

	custom := NewCalculator(0.07, 0.25, 0)
	assert.Equal(t, int64(25), custom.NoShowPenalty(100))
}

func TestSplitInsurance(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		severity domain.Severity
		payout   int64
		refund   int64
	}{
		{"Severe pays everything", 50, domain.SeveritySevere, 50, 0},
		{"Moderate pays half", 50, domain.SeverityModerate, 25, 25},
		{"Mild pays ten percent", 50, domain.SeverityMild, 5, 45},
		{"Mild rounds", 45, domain.SeverityMild, 5, 40}, // 4.5 -> 5
		{"Moderate odd amount", 33, domain.SeverityModerate, 17, 16},
		{"Zero insurance", 0, domain.SeveritySevere, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			split, err := SplitInsurance(tt.amount, tt.severity)
			require.NoError(t, err)
			assert.Equal(t, tt.payout, split.PayoutToOwner)
			assert.Equal(t, tt.refund, split.RefundToRenter)
			assert.Equal(t, tt.amount, split.PayoutToOwner+split.RefundToRenter)
		})
	}

	t.Run("Unknown severity", func(t *testing.T) {
		_, err := SplitInsurance(50, domain.Severity("catastrophic"))
		assert.Error(t, err)
	})
}

func TestInsuranceAmount(t *testing.T) {
	assert.Equal(t, int64(20), InsuranceAmount(200, 0.1))
	assert.Equal(t, int64(0), InsuranceAmount(200, 0))
	assert.Equal(t, int64(0), InsuranceAmount(0, 0.5))
	assert.Equal(t, int64(33), InsuranceAmount(333, 0.1)) // 33.3 -> 33
}

func TestRentalUnits(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		rentalType domain.RentalType
		end        time.Time
		expected   int
	}{
		{"One day", domain.RentalTypeDaily, start.Add(24 * time.Hour), 1},
		{"Partial day rounds up", domain.RentalTypeDaily, start.Add(25 * time.Hour), 2},
		{"Ten days", domain.RentalTypeDaily, start.AddDate(0, 0, 10), 10},
		{"One week", domain.RentalTypeWeekly, start.AddDate(0, 0, 7), 1},
		{"Eight days is two weeks", domain.RentalTypeWeekly, start.AddDate(0, 0, 8), 2},
		{"End before start", domain.RentalTypeDaily, start.Add(-time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RentalUnits(tt.rentalType, start, tt.end))
		})
	}
}

func TestLateDays(t *testing.T) {
	end := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, LateDays(end, end))
	assert.Equal(t, 0, LateDays(end, end.Add(-time.Hour)))
	assert.Equal(t, 1, LateDays(end, end.Add(time.Minute)))
	assert.Equal(t, 2, LateDays(end, end.Add(48*time.Hour)))
	assert.Equal(t, 3, LateDays(end, end.Add(49*time.Hour)))
}
