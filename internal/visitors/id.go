package visitors

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// CookieName is the cookie that carries the pseudonymous visitor id.
const CookieName = "visitor_id"

// Identity is the outcome of resolving a request's visitor.
type Identity struct {
	VisitorID string
	IPHash    string
	// IsNew reports that VisitorID was issued for this request and the
	// caller must set the visitor cookie.
	IsNew bool
}

// ResolveVisitor reuses a well-formed cookie value as the visitor id or issues
// a fresh random one. The source IP is only ever returned hashed.
func ResolveVisitor(cookieValue, sourceIP, salt string) Identity {
	identity := Identity{IPHash: HashIP(sourceIP, salt)}

	if IsWellFormed(cookieValue) {
		identity.VisitorID = cookieValue
		return identity
	}

	identity.VisitorID = uuid.NewString()
	identity.IsNew = true
	return identity
}

// IsWellFormed reports whether value is a canonical 36-character UUID.
func IsWellFormed(value string) bool {
	if len(value) != 36 {
		return false
	}
	_, err := uuid.Parse(value)
	return err == nil
}

// HashIP returns the hex SHA-256 digest of ip+salt.
func HashIP(ip, salt string) string {
	hash := sha256.Sum256([]byte(ip + salt))
	return hex.EncodeToString(hash[:])
}
