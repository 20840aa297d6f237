// Package identity issues and recognises the opaque identifiers used to
// remember a browser's big issue choice. Identifiers are not credentials.
package identity

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var canonical = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// A Provider returns the identifier of the browser behind a request, issuing a
// new one if needed.
type Provider interface {
	Identify(w http.ResponseWriter, r *http.Request) (string, error)
}

// IsValid reports whether s has the canonical textual shape of a UUID.
func IsValid(s string) bool {
	return canonical.MatchString(s)
}

// Normalize returns the lower case form of a valid identifier, so that
// identifiers differing only by case are the same. It returns false for
// anything that is not a valid identifier.
func Normalize(s string) (string, bool) {
	if !IsValid(s) {
		return "", false
	}
	return strings.ToLower(s), true
}

// New returns a random (version 4) identifier.
func New() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
