package usecase

import (
	"fmt"
	"strings"
)

// perThousandMarkers flag a listed price as covering 1000 units.
var perThousandMarkers = []string{"per 1k", "per 1000", "/1k", "1k", "1000"}

// Pricing is the resolved cost of a draft order.
type Pricing struct {
	RawPrice     float64
	PricePerUnit float64
	Multiplier   float64
	Total        float64
}

// ResolvePricing decides whether a listed price is per unit or per thousand
// units and computes the total for a quantity. Detection is a keyword
// heuristic over the service name and metadata text, with a fallback for
// follower packages listed above 1000. Internal math keeps full float
// precision; rounding happens only in FormatAmount.
func ResolvePricing(rawPrice float64, text string, quantity int) Pricing {
	multiplier := 1.0
	lower := strings.ToLower(text)

	marked := false
	for _, marker := range perThousandMarkers {
		if strings.Contains(lower, marker) {
			marked = true
			break
		}
	}
	if marked || (rawPrice > 1000 && strings.Contains(lower, "follower")) {
		multiplier = 1000
	}

	perUnit := rawPrice
	if multiplier > 1 {
		perUnit = rawPrice / 1000
	}

	return Pricing{
		RawPrice:     rawPrice,
		PricePerUnit: perUnit,
		Multiplier:   multiplier,
		Total:        perUnit * float64(quantity),
	}
}

// FormatAmount renders a monetary value with two decimal places.
func FormatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
