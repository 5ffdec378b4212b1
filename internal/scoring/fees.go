package scoring

import "github.com/shopspring/decimal"

// PaymentMethod selects the acquisition fee schedule.
type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentPayPal PaymentMethod = "paypal"
)

// FeeSchedule holds every fee applied between buying a raw item and selling
// the graded result. The processing fee is a single configurable flat amount;
// the platform fee is proportional to the sale value.
type FeeSchedule struct {
	// ProcessingFee is the flat authentication/grading cost per item.
	ProcessingFee decimal.Decimal

	// PlatformFeeRate is the resale platform's cut of the final sale value.
	PlatformFeeRate decimal.Decimal

	// Card and PayPal acquisition fee schedules.
	CardRate       decimal.Decimal
	CardFixed      decimal.Decimal
	PayPalRate     decimal.Decimal
	PayPalFixed    decimal.Decimal
	CrossBorderFee decimal.Decimal // additional PayPal rate for international sellers
}

// DefaultFees returns the standard schedule: $25 flat processing, a 13%
// combined platform cut, 2.35% + $0.30 card fees, and 2.89% + $0.49 PayPal
// fees with a 1.5% cross-border surcharge.
func DefaultFees() FeeSchedule {
	return FeeSchedule{
		ProcessingFee:   decimal.NewFromInt(25),
		PlatformFeeRate: decimal.NewFromFloat(0.13),
		CardRate:        decimal.NewFromFloat(0.0235),
		CardFixed:       decimal.NewFromFloat(0.30),
		PayPalRate:      decimal.NewFromFloat(0.0289),
		PayPalFixed:     decimal.NewFromFloat(0.49),
		CrossBorderFee:  decimal.NewFromFloat(0.015),
	}
}

// AcquisitionCost is the all-in cost of buying: the listing total plus payment
// processing fees for the chosen method.
func (f FeeSchedule) AcquisitionCost(listingTotal float64, method PaymentMethod, international bool) float64 {
	amount := decimal.NewFromFloat(listingTotal)

	var fee decimal.Decimal
	switch method {
	case PaymentPayPal:
		fee = amount.Mul(f.PayPalRate).Add(f.PayPalFixed)
		if international {
			fee = fee.Add(amount.Mul(f.CrossBorderFee))
		}
	default:
		fee = amount.Mul(f.CardRate).Add(f.CardFixed)
	}

	cost, _ := amount.Add(fee).Round(2).Float64()
	return cost
}

// NetProceeds is what remains of a sale value after the platform's
// proportional cut.
func (f FeeSchedule) NetProceeds(saleValue float64) float64 {
	amount := decimal.NewFromFloat(saleValue)
	net, _ := amount.Sub(amount.Mul(f.PlatformFeeRate)).Round(2).Float64()
	return net
}

// Processing returns the flat processing fee as a float for score math.
func (f FeeSchedule) Processing() float64 {
	v, _ := f.ProcessingFee.Float64()
	return v
}
