package crypto

import "io"

// SetRandReaderForTesting sets the random source used for keys, salts, and
// nonces. Returns a function that restores the previous source.
func SetRandReaderForTesting(r io.Reader) func() {
	original := randReader
	randReader = r
	return func() { randReader = original }
}
