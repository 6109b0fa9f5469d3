// Package pricing holds the shipping rate table, the state tax table, and
// delivery estimates used when an order is priced at creation.
package pricing

import (
	"math"
	"time"

	"github.com/fjellmark/njord/internal/domain"
)

// Shipping methods.
const (
	MethodStandard  = "standard"
	MethodExpress   = "express"
	MethodOvernight = "overnight"
)

// Shipping rates in cents. Standard ships free above the threshold.
const (
	StandardRateCents           int64 = 999
	ExpressRateCents            int64 = 1999
	OvernightRateCents          int64 = 3999
	FreeShippingThresholdCents  int64 = 5000
	defaultTaxRate                    = 0.05
)

// stateTaxRates maps US state codes to sales tax rates. States not listed
// use the default rate.
var stateTaxRates = map[string]float64{
	"CA": 0.0875,
	"NY": 0.08,
	"TX": 0.0625,
	"FL": 0.06,
}

// deliveryDays is the estimated transit time per shipping method.
var deliveryDays = map[string]int{
	MethodStandard:  7,
	MethodExpress:   3,
	MethodOvernight: 1,
}

// ValidMethod reports whether method is a known shipping method.
func ValidMethod(method string) bool {
	_, ok := deliveryDays[method]
	return ok
}

// Calculator prices shipping, tax and delivery estimates for new orders.
// The zero value is not usable; construct with NewCalculator.
type Calculator struct {
	taxRates       map[string]float64
	defaultTaxRate float64
}

// NewCalculator returns a calculator with the built-in rate tables.
func NewCalculator() *Calculator {
	return &Calculator{
		taxRates:       stateTaxRates,
		defaultTaxRate: defaultTaxRate,
	}
}

// ShippingCents returns the shipping charge for a method and order subtotal.
// Unknown methods price as standard.
func (c *Calculator) ShippingCents(method string, subtotalCents int64) int64 {
	switch method {
	case MethodExpress:
		return ExpressRateCents
	case MethodOvernight:
		return OvernightRateCents
	default:
		// Strictly above the threshold: an exactly $50.00 subtotal still
		// pays the standard rate.
		if subtotalCents > FreeShippingThresholdCents {
			return 0
		}
		return StandardRateCents
	}
}

// TaxCents returns sales tax on the subtotal for the destination state,
// rounded half up to the nearest cent.
func (c *Calculator) TaxCents(state string, subtotalCents int64) int64 {
	rate, ok := c.taxRates[state]
	if !ok {
		rate = c.defaultTaxRate
	}
	return int64(math.Round(float64(subtotalCents) * rate))
}

// EstimatedDelivery returns the projected delivery date for a shipping
// method, counted from now. Unknown methods estimate as standard.
func (c *Calculator) EstimatedDelivery(method string, now time.Time) time.Time {
	days, ok := deliveryDays[method]
	if !ok {
		days = deliveryDays[MethodStandard]
	}
	return now.AddDate(0, 0, days)
}

// Quote prices a full order in one call.
func (c *Calculator) Quote(lines []domain.OrderLine, shippingMethod, state string, now time.Time) (shippingCents, taxCents int64, estimatedDelivery time.Time) {
	var subtotal int64
	for _, l := range lines {
		subtotal += int64(l.Quantity) * l.UnitPriceCents
	}
	shippingCents = c.ShippingCents(shippingMethod, subtotal)
	taxCents = c.TaxCents(state, subtotal)
	estimatedDelivery = c.EstimatedDelivery(shippingMethod, now)
	return shippingCents, taxCents, estimatedDelivery
}
