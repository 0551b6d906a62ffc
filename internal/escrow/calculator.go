// Package escrow computes the amounts moved by rental transitions. Every
// function is pure; amounts are integer minor units and fractional results are
// rounded half away from zero.
package escrow

import (
	"fmt"

	"github.com/shopspring/decimal"

	"rently-backend/internal/domain"
)

const (
	DefaultCommissionRate    = 0.07
	DefaultNoShowPenaltyRate = 0.10
	DefaultNoShowMinPrice    = 10

	maxShortDailyUnits  = 30
	maxShortWeeklyUnits = 4
)

// CommissionSplit is the payout of a rental price at pickup.
// OwnerAmount + CommissionAmount always equals the rental price.
type CommissionSplit struct {
	OwnerAmount      int64 `json:"owner_amount"`
	CommissionAmount int64 `json:"commission_amount"`
}

// InsuranceSplit divides a held insurance amount after a damage report.
type InsuranceSplit struct {
	PayoutToOwner  int64 `json:"payout_to_owner"`
	RefundToRenter int64 `json:"refund_to_renter"`
}

// Calculator binds the configurable rates.
type Calculator struct {
	CommissionRate    decimal.Decimal
	NoShowPenaltyRate decimal.Decimal
	NoShowMinPrice    int64
}

func NewCalculator(commissionRate, noShowPenaltyRate float64, noShowMinPrice int64) *Calculator {
	return &Calculator{
		CommissionRate:    decimal.NewFromFloat(commissionRate),
		NoShowPenaltyRate: decimal.NewFromFloat(noShowPenaltyRate),
		NoShowMinPrice:    noShowMinPrice,
	}
}

func DefaultCalculator() *Calculator {
	return NewCalculator(DefaultCommissionRate, DefaultNoShowPenaltyRate, DefaultNoShowMinPrice)
}

func (c *Calculator) CommissionSplit(rentalPrice int64) CommissionSplit {
	return SplitCommission(rentalPrice, c.CommissionRate)
}

func (c *Calculator) NoShowPenalty(rentalPrice int64) int64 {
	if rentalPrice <= c.NoShowMinPrice {
		return 0
	}
	return roundMinor(decimal.NewFromInt(rentalPrice).Mul(c.NoShowPenaltyRate))
}

// SplitCommission takes round(price * rate) as commission and leaves the rest
// to the owner so no minor unit is lost.
func SplitCommission(rentalPrice int64, rate decimal.Decimal) CommissionSplit {
	if rentalPrice <= 0 {
		return CommissionSplit{}
	}
	commission := roundMinor(decimal.NewFromInt(rentalPrice).Mul(rate))
	if commission > rentalPrice {
		commission = rentalPrice
	}
	if commission < 0 {
		commission = 0
	}
	return CommissionSplit{
		OwnerAmount:      rentalPrice - commission,
		CommissionAmount: commission,
	}
}

// LateFee charges per late day only for short rentals: daily up to 30 units,
// weekly up to 4 units. The per-day rate is price/quantity for daily rentals and
// price/7 for weekly rentals.
func LateFee(rentalType domain.RentalType, rentalQuantity int, rentalPrice int64, lateDays int) int64 {
	if lateDays <= 0 || rentalPrice <= 0 {
		return 0
	}

	var divisor int64
	switch rentalType {
	case domain.RentalTypeDaily:
		if rentalQuantity <= 0 || rentalQuantity > maxShortDailyUnits {
			return 0
		}
		divisor = int64(rentalQuantity)
	case domain.RentalTypeWeekly:
		if rentalQuantity <= 0 || rentalQuantity > maxShortWeeklyUnits {
			return 0
		}
		divisor = 7
	default:
		return 0
	}

	fee := decimal.NewFromInt(rentalPrice).
		Mul(decimal.NewFromInt(int64(lateDays))).
		Div(decimal.NewFromInt(divisor))
	return roundMinor(fee)
}

// SeverityPayoutPercent is the share of insurance paid to the owner.
func SeverityPayoutPercent(severity domain.Severity) (int64, error) {
	switch severity {
	case domain.SeverityMild:
		return 10, nil
	case domain.SeverityModerate:
		return 50, nil
	case domain.SeveritySevere:
		return 100, nil
	}
	return 0, fmt.Errorf("unknown severity %q", severity)
}

func SplitInsurance(insuranceAmount int64, severity domain.Severity) (InsuranceSplit, error) {
	percent, err := SeverityPayoutPercent(severity)
	if err != nil {
		return InsuranceSplit{}, err
	}
	if insuranceAmount <= 0 {
		return InsuranceSplit{}, nil
	}
	payout := roundMinor(decimal.NewFromInt(insuranceAmount).
		Mul(decimal.NewFromInt(percent)).
		Div(decimal.NewFromInt(100)))
	return InsuranceSplit{
		PayoutToOwner:  payout,
		RefundToRenter: insuranceAmount - payout,
	}, nil
}

// InsuranceAmount is round(originalValue * rate).
func InsuranceAmount(originalValue int64, rate float64) int64 {
	if originalValue <= 0 || rate <= 0 {
		return 0
	}
	return roundMinor(decimal.NewFromInt(originalValue).Mul(decimal.NewFromFloat(rate)))
}

func roundMinor(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
