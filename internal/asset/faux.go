package asset

import (
	"crypto/rand"
	"math/big"

	"github.com/onyo-org/onyo/internal/onyoerr"
)

// DefaultFauxSerialLength is the suffix length generated when the user
// omits the tail field. Callers always pass this value; no configuration
// key changes it.
const DefaultFauxSerialLength = 6

const fauxAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// MaxFauxSerialAttempts bounds the number of collision retries before
// FauxSerial gives up (spec §4.3: "retrying up to a bounded number of
// times on collision; failure to find a free serial aborts the
// operation").
const MaxFauxSerialAttempts = 100

// FauxSerial generates a single "faux" + N random lowercase-alphanumeric
// characters tail value, retrying against taken (existing tail values,
// "faux" prefix included, already present in the repository) until a
// free one is found or MaxFauxSerialAttempts is exhausted.
func FauxSerial(length int, taken map[string]bool) (string, error) {
	if length <= 0 {
		length = DefaultFauxSerialLength
	}
	for attempt := 0; attempt < MaxFauxSerialAttempts; attempt++ {
		suffix, err := randomAlphanumeric(length)
		if err != nil {
			return "", err
		}
		serial := "faux" + suffix
		if taken == nil || !taken[serial] {
			return serial, nil
		}
	}
	return "", onyoerr.New(onyoerr.FauxSerialExhausted, "")
}

func randomAlphanumeric(n int) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(fauxAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = fauxAlphabet[idx.Int64()]
	}
	return string(out), nil
}
