package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

// OTPLength is the number of digits in an activation code.
const OTPLength = 6

var reOTP = regexp.MustCompile(`^\d{6}$`)

// GenerateOTP returns a zero-padded 6 digit code drawn from crypto/rand.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// WellFormedOTP reports whether s is exactly six ASCII digits.
func WellFormedOTP(s string) bool { return reOTP.MatchString(s) }
