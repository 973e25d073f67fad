package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// PlatformCommissionRate is the fixed share of every line total kept by the
// marketplace.
var PlatformCommissionRate = decimal.RequireFromString("0.05")

var ErrNegativeAmount = errors.New("amount must not be negative")

// Split is the division of a line total between the seller and the platform.
// SellerAmount + AdminAmount always equals Total.
type Split struct {
	Total        int64
	SellerAmount int64
	AdminAmount  int64
}

// SplitAmount divides totalCents into the platform commission, rounded half up
// to the minor unit, and the seller remainder.
func SplitAmount(totalCents int64) (Split, error) {
	if totalCents < 0 {
		return Split{}, ErrNegativeAmount
	}
	fee := decimal.NewFromInt(totalCents).Mul(PlatformCommissionRate).Round(0).IntPart()
	return Split{
		Total:        totalCents,
		SellerAmount: totalCents - fee,
		AdminAmount:  fee,
	}, nil
}

// Plus adds two splits field by field. A group of lines is split as the sum
// of its line splits so refunding every line returns exactly what was paid.
func (s Split) Plus(o Split) Split {
	return Split{
		Total:        s.Total + o.Total,
		SellerAmount: s.SellerAmount + o.SellerAmount,
		AdminAmount:  s.AdminAmount + o.AdminAmount,
	}
}

// LineTotal multiplies a unit price by a quantity.
func LineTotal(unitCents int64, quantity int) (int64, error) {
	if unitCents < 0 || quantity < 0 {
		return 0, ErrNegativeAmount
	}
	return unitCents * int64(quantity), nil
}
