package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// currencyDecimals maps supported ISO 4217 currency codes to the number of
// decimal places used when converting between minor and major units.
// Amounts are stored in minor units everywhere; major units only appear at
// display boundaries and inside the reconciliation matcher.
var currencyDecimals = map[string]int32{
	"AED": 2,
	"AUD": 2,
	"BHD": 3,
	"CAD": 2,
	"CHF": 2,
	"CNY": 2,
	"EGP": 2,
	"EUR": 2,
	"GBP": 2,
	"GHS": 2,
	"INR": 2,
	"JPY": 0,
	"KES": 2,
	"KRW": 0,
	"KWD": 3,
	"NGN": 2,
	"OMR": 3,
	"RWF": 0,
	"TND": 3,
	"TZS": 2,
	"UGX": 0,
	"USD": 2,
	"XAF": 0,
	"XOF": 0,
	"ZAR": 2,
}

// ErrUnknownCurrency is returned for codes missing from the lookup table.
// Callers surface it as a validation failure before any write happens.
var ErrUnknownCurrency = fmt.Errorf("unknown currency code")

// CurrencyDecimals returns the decimal places for a supported currency code.
func CurrencyDecimals(code string) (int32, error) {
	places, ok := currencyDecimals[strings.ToUpper(code)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
	}
	return places, nil
}

// IsSupportedCurrency reports whether the code exists in the lookup table.
func IsSupportedCurrency(code string) bool {
	_, ok := currencyDecimals[strings.ToUpper(code)]
	return ok
}

// ToMajor converts an amount in minor units to its major unit representation.
func ToMajor(amountMinor int64, code string) (decimal.Decimal, error) {
	places, err := CurrencyDecimals(code)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(amountMinor, -places), nil
}

// ToMinor converts a major unit amount to minor units. Amounts with more
// precision than the currency supports are rejected rather than rounded.
func ToMinor(major decimal.Decimal, code string) (int64, error) {
	places, err := CurrencyDecimals(code)
	if err != nil {
		return 0, err
	}
	shifted := major.Shift(places)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %s exceeds %d decimal places for %s", major.String(), places, code)
	}
	return shifted.IntPart(), nil
}

// MajorUnitsOrDefault converts minor units to a major unit float, falling
// back to two decimal places for codes outside the lookup table. Only the
// matcher uses this; persisted rows always carry validated currencies.
func MajorUnitsOrDefault(amountMinor int64, code string) float64 {
	places, ok := currencyDecimals[strings.ToUpper(code)]
	if !ok {
		places = 2
	}
	f, _ := decimal.New(amountMinor, -places).Float64()
	return f
}
