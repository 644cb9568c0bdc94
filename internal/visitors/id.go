package visitors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashIP returns the salted hash of a client IP. The raw address is never
// stored, only this digest participates in fingerprinting.
func HashIP(ipAddress, salt string) string {
	hash := sha256.Sum256([]byte(ipAddress + salt))
	return hex.EncodeToString(hash[:])
}

// Fingerprint derives the stable visitor identity for one website. The
// website ID is mixed in so the same browser cannot be correlated across
// websites. An empty client token falls back to the hashed IP alone, which
// collapses all tokenless traffic from one address into one visitor.
func Fingerprint(websiteID uint, ipAddress, clientVisitorID, salt string) string {
	hashedIP := HashIP(ipAddress, salt)
	if clientVisitorID == "" {
		return hashedIP
	}
	data := fmt.Sprintf("%s.%d.%s", clientVisitorID, websiteID, hashedIP)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
