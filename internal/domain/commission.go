package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCommissionRate is the platform share of every sale.
var DefaultCommissionRate = decimal.RequireFromString("0.10")

// MoneyPlaces is the number of decimal places amounts are kept at.
const MoneyPlaces = 2

// CommissionPolicy splits gross sale amounts between platform and seller.
type CommissionPolicy struct {
	Rate decimal.Decimal
}

// NewCommissionPolicy validates rate and returns a policy. rate must be in [0, 1].
func NewCommissionPolicy(rate decimal.Decimal) (CommissionPolicy, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return CommissionPolicy{}, fmt.Errorf("commission rate %s out of range [0, 1]", rate)
	}
	return CommissionPolicy{Rate: rate}, nil
}

// Split is the result of dividing one gross amount.
type Split struct {
	Gross              decimal.Decimal
	PlatformCommission decimal.Decimal
	SellerEarnings     decimal.Decimal
	Rate               decimal.Decimal
}

// Split divides gross. The commission is rounded to cents and the seller
// receives the exact remainder, so the two parts always sum to gross.
func (p CommissionPolicy) Split(gross decimal.Decimal) Split {
	commission := gross.Mul(p.Rate).Round(MoneyPlaces)
	return Split{
		Gross:              gross,
		PlatformCommission: commission,
		SellerEarnings:     gross.Sub(commission),
		Rate:               p.Rate,
	}
}

// SellerRate is the share of gross kept by the seller.
func (p CommissionPolicy) SellerRate() decimal.Decimal {
	return decimal.NewFromInt(1).Sub(p.Rate)
}

// CommissionConfig is the externally visible split configuration.
type CommissionConfig struct {
	AdminCommissionPercent decimal.Decimal
	SellerPercentage       decimal.Decimal
}

// Config renders the policy as percentages.
func (p CommissionPolicy) Config() CommissionConfig {
	hundred := decimal.NewFromInt(100)
	return CommissionConfig{
		AdminCommissionPercent: p.Rate.Mul(hundred),
		SellerPercentage:       p.SellerRate().Mul(hundred),
	}
}
