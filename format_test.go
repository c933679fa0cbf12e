package formula

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatStandardNumbers(t *testing.T) {
	cases := []struct {
		value  Primitive
		format string
		want   string
	}{
		{1234.5, "n2", "1,234.50"},
		{1234.5, "n", "1,234.50"},
		{1234567.891, "n0", "1,234,568"},
		{-1234.5, "c", "-$1,234.50"},
		{99.999, "c2", "$100.00"},
		{0.1234, "p1", "12.3%"},
		{0.5, "p0", "50%"},
		{42, "d5", "00042"},
		{-42.7, "d", "-42"},
		{255, "x", "ff"},
		{255, "X4", "00FF"},
		{1234.5678, "f1", "1234.6"},
		{12345.678, "e2", "1.23e+04"},
		{12345.678, "E2", "1.23E+04"},
		{0.5, "g", "0.5"},
		{1234.5678, "g3", "1.23e+03"},
		{3.0, "General", "3"},
		{math.NaN(), "n2", "NaN"},
		{"12.5", "n1", "12.5"},
		{"abc", "n1", "abc"},
		{true, "n2", "TRUE"},
		{2.5, "", "2.5"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatValue(tc.value, tc.format), "%v with %q", tc.value, tc.format)
	}
}

func TestFormatCustomNumbers(t *testing.T) {
	cases := []struct {
		value  float64
		format string
		want   string
	}{
		{3.14159, "0.00", "3.14"},
		{1234567, "#,##0", "1,234,567"},
		{1234.5, "#,##0.00", "1,234.50"},
		{0.125, "0.0%", "12.5%"},
		{5, "000", "005"},
		{0.5, "#.##", ".5"},
		{2.5, "0.0#", "2.5"},
		{2.556, "0.0#", "2.56"},
		{-5, "0.00", "-5.00"},
		{-5, "0.00;(0.00)", "(5.00)"},
		{0, "0.00;(0.00);\"zero\"", "zero"},
		{12, "\"$\"0", "$12"},
		{12, "0\\x", "12x"},
		{7, "0 \"units\"", "7 units"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatValue(tc.value, tc.format), "%v with %q", tc.value, tc.format)
	}
}

func TestFormatDates(t *testing.T) {
	date := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	cases := []struct {
		format string
		want   string
	}{
		{"yyyy-MM-dd HH:mm:ss", "2024-03-05 14:07:09"},
		{"d", "3/5/2024"},
		{"D", "Tuesday, March 5, 2024"},
		{"t", "2:07 PM"},
		{"T", "2:07:09 PM"},
		{"g", "3/5/2024 2:07 PM"},
		{"mm/dd/yyyy", "03/05/2024"},
		{"m/d/yy", "3/5/24"},
		{"h:mm AM/PM", "2:07 PM"},
		{"hh:mm:ss", "02:07:09"},
		{"mm:ss", "07:09"},
		{"MMM d", "Mar 5"},
		{"ddd", "Tue"},
		{"dddd", "Tuesday"},
		{"'Q:' yyyy", "Q: 2024"},
		{"m/d/yyyy h:mm AM/PM", "3/5/2024 2:07 PM"},
		{"H\\h", "14h"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatValue(date, tc.format), tc.format)
	}

	assert.Equal(t, "2024-01-01", FormatValue(45292.0, "yyyy-MM-dd"))
	assert.Equal(t, "12:00 PM", FormatValue(0.5, "h:mm tt"))
	assert.Equal(t, "1/1/2024", FormatValue(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ""))
}

func TestFormattedValueSuppliesFormat(t *testing.T) {
	assert.Equal(t, "50%", FormatValue(FormattedValue{Value: 0.5, Format: "p0"}, ""))
	assert.Equal(t, "0.50", FormatValue(FormattedValue{Value: 0.5, Format: "p0"}, "n2"))
	assert.Equal(t, "3/5/2024", FormatValue(FormattedValue{Value: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), Format: "d"}, ""))
	assert.Equal(t, "x", FormatValue(FormattedValue{Value: "x", Format: "n2"}, ""))
}
