package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"", 0},
		{"   ", 0},
		{"100", 100},
		{" 49.5 ", 49.5},
		{"0", 0},
		{"-20", 0},
		{"abc", 0},
		{"NaN", 0},
		{"Inf", 0},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, ParseAmount(test.input), "ParseAmount(%q)", test.input)
	}
}

func TestPaymentMethodValid(t *testing.T) {
	for _, m := range PaymentMethods {
		assert.True(t, m.Valid(), "%s should be valid", m)
	}
	assert.False(t, PaymentMethod("").Valid())
	assert.False(t, PaymentMethod("نقد").Valid())
}

func TestPaymentStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusCompleted.Valid())
	assert.False(t, PaymentStatus("done").Valid())
}

func TestStudentFullName(t *testing.T) {
	s := Student{FirstName: "Sara", LastName: "Ahmadi"}
	assert.Equal(t, "Sara Ahmadi", s.FullName())
	assert.Equal(t, "Sara", Student{FirstName: "Sara"}.FullName())
}
