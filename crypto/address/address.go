package address

import (
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/thrylos-labs/posseal/crypto/hash"
)

const (
	// AddressWords is the number of 5-bit words in the data part of an address
	// (20 hash bytes -> 160 bits / 5 bits per word).
	AddressWords = 32
	AddressHRP   = "ps"
)

// New derives a bech32 address from arbitrary seed material, typically a
// participant name or public key.
func New(seed []byte) (string, error) {
	digest := hash.NewHash(seed)
	words, err := bech32.ConvertBits(digest[:20], 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert seed hash to 5-bit words: %v", err)
	}
	if len(words) != AddressWords {
		return "", fmt.Errorf("unexpected number of words after conversion: got %d, want %d", len(words), AddressWords)
	}
	addr, err := bech32.Encode(AddressHRP, words)
	if err != nil {
		return "", fmt.Errorf("failed to encode address: %v", err)
	}
	return addr, nil
}

// Validate checks that addr is a bech32 string with our HRP and data length.
func Validate(addr string) bool {
	hrp, words, err := bech32.Decode(addr)
	if err != nil {
		return false
	}
	if hrp != AddressHRP {
		return false
	}
	return len(words) == AddressWords
}
