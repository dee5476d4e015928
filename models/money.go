package models

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Money - денежная сумма в минимальных единицах валюты (центах).
type Money int64

// Целая часть не длиннее 8 цифр: всего 10 цифр, из них 2 после точки.
const maxIntegerDigits = 8

var (
	ErrInvalidAmount  = errors.New("amount is not a valid decimal number")
	ErrTooManyDigits  = fmt.Errorf("amount must have at most %d digits before the decimal point", maxIntegerDigits)
	ErrTooManyDecimal = errors.New("amount must have at most 2 decimal places")
)

var (
	// Срезаем ведущие символы валюты и прочий мусор: "USD$500.00" -> "500.00".
	leadingJunk = regexp.MustCompile(`^[^\d.\-]+`)
	// Без экспоненты и разделителей разрядов.
	plainDecimal = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)$`)
	integerLimit = decimal.New(1, maxIntegerDigits)
)

// NewMoney возвращает указатель на сумму, удобно для необязательных полей.
func NewMoney(cents int64) *Money {
	m := Money(cents)
	return &m
}

func (m Money) Cents() int64 {
	return int64(m)
}

func (m Money) String() string {
	return decimal.New(int64(m), -2).StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

// UnmarshalJSON принимает как строку ("$50.00"), так и число (50.5).
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	v, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMoney разбирает сумму с не более чем двумя знаками после точки.
func ParseMoney(s string) (Money, error) {
	d, err := parseAmount(s)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(2)) {
		return 0, ErrTooManyDecimal
	}
	return Money(d.Shift(2).IntPart()), nil
}

// RoundMoney разбирает сумму и округляет её до целых центов (банковское округление).
func RoundMoney(s string) (Money, error) {
	d, err := parseAmount(s)
	if err != nil {
		return 0, err
	}
	return Money(d.RoundBank(2).Shift(2).IntPart()), nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = leadingJunk.ReplaceAllString(strings.TrimSpace(s), "")
	if !plainDecimal.MatchString(s) {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if d.Abs().GreaterThanOrEqual(integerLimit) {
		return decimal.Zero, ErrTooManyDigits
	}
	return d, nil
}
