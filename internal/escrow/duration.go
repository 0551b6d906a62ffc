package escrow

import (
	"time"

	"rently-backend/internal/domain"
)

const day = 24 * time.Hour

// RentalUnits is the number of billable units between start and end, rounded
// up to whole days or whole weeks.
func RentalUnits(rentalType domain.RentalType, start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	days := ceilDiv(end.Sub(start), day)
	if rentalType == domain.RentalTypeWeekly {
		weeks := days / 7
		if days%7 > 0 {
			weeks++
		}
		return weeks
	}
	return days
}

// LateDays counts started days past endDate at returnedAt; zero when on time.
func LateDays(endDate, returnedAt time.Time) int {
	if !returnedAt.After(endDate) {
		return 0
	}
	return ceilDiv(returnedAt.Sub(endDate), day)
}

func ceilDiv(d, unit time.Duration) int {
	n := int(d / unit)
	if d%unit > 0 {
		n++
	}
	return n
}
