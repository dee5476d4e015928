package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"tutormarket/models"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want models.Money
		err  error
	}{
		{"50", 5000, nil},
		{"50.5", 5050, nil},
		{"$50.00", 5000, nil},
		{"USD$1,5", 0, models.ErrInvalidAmount},
		{"USD$500.01", 50001, nil},
		{".75", 75, nil},
		{"99999999.99", 9999999999, nil},
		{"100000000", 0, models.ErrTooManyDigits},
		{"10.001", 0, models.ErrTooManyDecimal},
		{"10.500", 1050, nil},
		{"abc", 0, models.ErrInvalidAmount},
		{"", 0, models.ErrInvalidAmount},
		{"-5", -500, nil},
		{"50.", 5000, nil},
		{"1e3", 0, models.ErrInvalidAmount},
		{"1.2.3", 0, models.ErrInvalidAmount},
	}
	for _, tt := range tests {
		got, err := models.ParseMoney(tt.in)
		if tt.err != nil {
			require.ErrorIs(t, err, tt.err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}

func TestRoundMoneyHalfEven(t *testing.T) {
	tests := map[string]models.Money{
		"USD$10.005": 1000,
		"10.015":     1002,
		"10.0051":    1001,
		"10.004":     1000,
		"0.125":      12,
		"0.135":      14,
		"-0.125":     -12,
	}
	for in, want := range tests {
		got, err := models.RoundMoney(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestMoneyJSON(t *testing.T) {
	var v struct {
		Budget *models.Money `json:"budget"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"budget": "$12.30"}`), &v))
	require.Equal(t, models.Money(1230), *v.Budget)

	require.NoError(t, json.Unmarshal([]byte(`{"budget": 7.5}`), &v))
	require.Equal(t, models.Money(750), *v.Budget)

	require.NoError(t, json.Unmarshal([]byte(`{"budget": null}`), &v))
	require.Nil(t, v.Budget)

	require.Error(t, json.Unmarshal([]byte(`{"budget": "1.234"}`), &v))

	out, err := json.Marshal(models.Money(-5))
	require.NoError(t, err)
	require.JSONEq(t, `"-0.05"`, string(out))
	require.Equal(t, "123456.70", models.Money(12345670).String())
}
