package utils

import (
	"crypto/rand"
	"math/big"
	"time"
)

// codeAlphabet is the character set for voucher codes.  Uppercase plus
// digits keeps codes readable over the phone.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomCode returns n characters drawn uniformly from codeAlphabet using
// crypto/rand.
func RandomCode(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = codeAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// NewAutoCode builds the code of an automatically issued voucher:
// "BON-" followed by six random characters.
func NewAutoCode() (string, error) {
	suffix, err := RandomCode(6)
	if err != nil {
		return "", err
	}
	return "BON-" + suffix, nil
}

// NewManualCode builds the code of a manually issued voucher: eight
// random characters, no prefix.
func NewManualCode() (string, error) {
	return RandomCode(8)
}

// VoucherAmount computes the voucher value for an approved reservation:
// 5% of the room's hourly price times the whole hours booked.  Partial
// hours do not count, so a 90-minute booking is worth one hour.  Never
// negative.
func VoucherAmount(debut, fin time.Time, prixHoraire float64) float64 {
	hours := int(fin.Sub(debut).Hours())
	if hours < 0 {
		hours = 0
	}
	return float64(hours) * prixHoraire * 0.05
}

// VoucherExpiry returns the expiration date of a voucher issued at t:
// six months later.
func VoucherExpiry(t time.Time) time.Time {
	return t.AddDate(0, 6, 0)
}
