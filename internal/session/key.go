package session

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"swagtest/internal/model"
)

// Key identifies an endpoint in the test-case cache. Method is folded to
// upper case so lookups are case-insensitive on it.
type Key struct {
	Path   string
	Method string
}

func NewKey(path, method string) Key {
	return Key{Path: path, Method: strings.ToUpper(method)}
}

func KeyOf(ep model.Endpoint) Key {
	return NewKey(ep.Path, ep.Method)
}

func (k Key) String() string {
	return k.Path + "-" + k.Method
}

// SectionID is the DOM-safe identifier of the endpoint's test-case area.
// The NUL separator keeps ("/ab", "GET") and ("/a", "BGET") apart.
func (k Key) SectionID() string {
	sum := sha256.Sum256([]byte(k.Path + "\x00" + k.Method))
	return "ep-" + hex.EncodeToString(sum[:10])
}
