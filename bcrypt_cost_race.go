//go:build race

package identity

import "golang.org/x/crypto/bcrypt"

// race builds run hashing several times slower
func init() {
	hashCost = bcrypt.DefaultCost
}
