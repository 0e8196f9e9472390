package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidAddress(t *testing.T) {
	testCases := []struct {
		input    string
		expected bool
	}{
		{input: "user.name+tag@example.co", expected: true},
		{input: "a@b.co", expected: true},
		{input: "first_last%dept@mail.example-corp.com", expected: true},
		{input: "UPPER@EXAMPLE.ORG", expected: true},
		{input: "bad-address@", expected: false},
		{input: "no-at-symbol.com", expected: false},
		{input: "a@b.c", expected: false},
		{input: "a@b", expected: false},
		{input: "a@b.c0", expected: false},
		{input: "@example.com", expected: false},
		{input: "", expected: false},
		{input: "two@@example.com", expected: false},
		{input: "spaces in@example.com", expected: false},
		// trailing junk after a valid-looking prefix
		{input: "a@b.co junk", expected: false},
		{input: "a@b.co\n", expected: false},
		{input: " a@b.co", expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsValidAddress(tc.input))
		})
	}
}

func TestInvalidAddresses(t *testing.T) {
	assert.Nil(t, InvalidAddresses("a@b.co", "you@example.com"))
	assert.Equal(
		t,
		[]string{"bad-address@", "a@b.c"},
		InvalidAddresses("a@b.co", "bad-address@", "you@example.com", "a@b.c"),
	)
}
