package mpesa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"local safaricom prefix", "0712345678", "254712345678"},
		{"local 01 prefix", "0112345678", "254112345678"},
		{"plus country code", "+254712345678", "254712345678"},
		{"country code", "254712345678", "254712345678"},
		{"spaces", "0712 345 678", "254712345678"},
		{"dashes and parens", "(0712)-345-678", "254712345678"},
		{"surrounding whitespace", "  254712345678\n", "254712345678"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizePhone(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePhone_Invalid(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{
		"",
		"12345",
		"0812345678",
		"+1 555 123 4567",
		"07123",
		"2547123456789",
		"07123456789",
	} {
		raw := raw
		t.Run(raw, func(t *testing.T) {
			t.Parallel()

			_, err := NormalizePhone(raw)
			assert.ErrorIs(t, err, ErrInvalidPhoneFormat)
		})
	}
}
