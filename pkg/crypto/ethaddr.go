package crypto

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// AddressFromUncompressedPub expects 65-byte uncompressed secp256k1 pubkey (0x04 || X || Y).
// Returns EIP-55 checksummed hex string like 0xABCD...
func AddressFromUncompressedPub(pub []byte) string {
	if len(pub) != 65 || pub[0] != 0x04 {
		return ""
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(pub[1:])
	sum := h.Sum(nil)
	return EIP55(sum[12:]) // last 20 bytes
}

// EIP55 computes the checksummed hex address string from 20-byte raw address.
func EIP55(addr20 []byte) string {
	hexaddr := hex.EncodeToString(addr20) // lower
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(hexaddr))
	hash := h.Sum(nil)

	out := make([]byte, 2+len(hexaddr))
	copy(out, []byte("0x"))
	for i, c := range []byte(hexaddr) {
		if c >= '0' && c <= '9' {
			out[2+i] = c
			continue
		}
		// if the corresponding keccak nibble >= 8, uppercase the char
		hb := hash[i>>1]
		nibble := hb & 0x0f
		if i%2 == 0 {
			nibble = (hb >> 4) & 0x0f
		}
		if nibble >= 8 {
			out[2+i] = byte(strings.ToUpper(string(c))[0])
		} else {
			out[2+i] = c
		}
	}
	return string(out)
}
