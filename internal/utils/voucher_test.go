package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoucherAmountWholeHours(t *testing.T) {
	debut := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	fin := debut.Add(3 * time.Hour)
	assert.InDelta(t, 3*20.0*0.05, VoucherAmount(debut, fin, 20.0), 1e-9)
}

func TestVoucherAmountIgnoresPartialHour(t *testing.T) {
	debut := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	// 90 minutes counts as a single hour.
	fin := debut.Add(90 * time.Minute)
	assert.InDelta(t, 1*10.0*0.05, VoucherAmount(debut, fin, 10.0), 1e-9)

	// Under one hour is worth nothing.
	fin = debut.Add(45 * time.Minute)
	assert.Zero(t, VoucherAmount(debut, fin, 10.0))
}

func TestVoucherAmountNeverNegative(t *testing.T) {
	debut := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	fin := debut.Add(-2 * time.Hour)
	assert.Zero(t, VoucherAmount(debut, fin, 50.0))
}

func TestNewAutoCodeFormat(t *testing.T) {
	re := regexp.MustCompile(`^BON-[A-Z0-9]{6}$`)
	for i := 0; i < 50; i++ {
		code, err := NewAutoCode()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestNewManualCodeFormat(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z0-9]{8}$`)
	for i := 0; i < 50; i++ {
		code, err := NewManualCode()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestVoucherExpirySixMonths(t *testing.T) {
	issued := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 7, 15, 10, 30, 0, 0, time.UTC), VoucherExpiry(issued))
}

func TestHashRefreshRawIsDeterministicHex(t *testing.T) {
	h1 := HashRefreshRaw("abc")
	h2 := HashRefreshRaw("abc")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, HashRefreshRaw("abd"))
}
