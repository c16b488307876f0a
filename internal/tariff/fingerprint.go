package tariff

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
)

// FingerprintVersion changes whenever the fingerprint input changes shape
const FingerprintVersion = 1

// Fingerprint returns a stable hex digest of a document. Map keys marshal in
// sorted order and amounts in minimal form, so equal tariffs hash equally
// regardless of how they were built.
func Fingerprint(doc *TariffDocument) string {
	if doc == nil {
		return ""
	}
	body, err := json.Marshal(doc)
	if err != nil {
		// Only a broken Amount could fail here
		return ""
	}
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(FingerprintVersion) + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
