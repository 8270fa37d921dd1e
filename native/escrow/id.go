package escrow

import (
	"encoding/hex"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ComputeID derives a deterministic contract identifier from the parties and
// a caller-supplied reference (listing id, payment memo). Resubmitting the
// same triple always yields the same id, which lets the duplicate check in
// Create absorb client retries.
func ComputeID(client, provider, reference string) string {
	digest := ethcrypto.Keccak256(
		[]byte(strings.TrimSpace(client)),
		[]byte{0},
		[]byte(strings.TrimSpace(provider)),
		[]byte{0},
		[]byte(strings.TrimSpace(reference)),
	)
	return hex.EncodeToString(digest)
}
