// Package auth generates and verifies recovery codes -- the only
// authentication factor this system has (spec.md §1 Non-goals: "no
// authentication beyond a recovery-code lookup"). The teacher
// (pliu-chatty/internal/handlers/auth.go) hashes login passwords with
// bcrypt before persisting them; there are no passwords here, but the
// recovery code is the equivalent bearer secret, so it gets the same
// treatment: generated once, hashed before it ever reaches the Document,
// and compared with bcrypt.CompareHashAndPassword rather than stored or
// matched in cleartext.
package auth

import (
	"crypto/rand"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// codeAlphabet excludes the visually ambiguous glyphs 0/O and 1/I, per
// spec.md §4.6.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 12
const groupSize = 4

// GenerateCode returns a fresh 12-character code drawn uniformly from
// codeAlphabet, rendered as three dash-separated groups of four
// (spec.md §4.6).
func GenerateCode() (string, error) {
	raw := make([]byte, codeLength)
	for i := range raw {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		raw[i] = codeAlphabet[n.Int64()]
	}
	var b strings.Builder
	for i, c := range raw {
		if i > 0 && i%groupSize == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}

// Normalize strips dashes and uppercases, the exact transform spec.md §4.6
// requires be applied to both the incoming login_recovery code and every
// stored code before matching.
func Normalize(code string) string {
	return strings.ToUpper(strings.ReplaceAll(code, "-", ""))
}

// Hash bcrypt-hashes a normalized code for storage in the Document.
func Hash(normalizedCode string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(normalizedCode), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Verify reports whether normalizedCode matches hash.
func Verify(hash, normalizedCode string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(normalizedCode)) == nil
}
