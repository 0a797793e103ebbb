package allocation

import (
	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	"github.com/plannivo/finance/pkg/money"
	"github.com/shopspring/decimal"
)

// Projection is the display split of used hours for one package.
type Projection struct {
	PackageID      snowflake.ID    `json:"package_id"`
	UsedHours      decimal.Decimal `json:"used_hours"`
	RemainingHours decimal.Decimal `json:"remaining_hours"`
}

// Project spreads used hours over the active packages in proportion to their
// opening hours. The last package absorbs rounding so the shares add up to
// used, capped by each package's opening hours. Hours consumed before the
// opening credit count as used. The output is for display only and must not
// be fed back into Allocate.
func Project(packages []bookingdomain.CustomerPackage, used decimal.Decimal) []Projection {
	active := make([]bookingdomain.CustomerPackage, 0, len(packages))
	openingHours := decimal.Zero
	for _, pkg := range packages {
		if pkg.Status != bookingdomain.PackageStatusActive || !pkg.OpeningHours.IsPositive() {
			continue
		}
		active = append(active, pkg)
		openingHours = openingHours.Add(pkg.OpeningHours)
	}
	if len(active) == 0 {
		return nil
	}

	if used.IsNegative() {
		used = decimal.Zero
	}
	if used.GreaterThan(openingHours) {
		used = openingHours
	}

	out := make([]Projection, 0, len(active))
	assigned := decimal.Zero
	for i, pkg := range active {
		var share decimal.Decimal
		if i == len(active)-1 {
			share = used.Sub(assigned)
		} else {
			share = money.Round(used.Mul(pkg.OpeningHours).Div(openingHours))
		}
		if share.GreaterThan(pkg.OpeningHours) {
			share = pkg.OpeningHours
		}
		if share.IsNegative() {
			share = decimal.Zero
		}
		assigned = assigned.Add(share)
		remaining := pkg.OpeningHours.Sub(share)
		out = append(out, Projection{
			PackageID:      pkg.ID,
			UsedHours:      pkg.TotalHours.Sub(remaining),
			RemainingHours: remaining,
		})
	}
	return out
}
