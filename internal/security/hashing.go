package security

import "golang.org/x/crypto/bcrypt"

// Hasher derives and checks bcrypt digests for stored credentials. Plaintext
// passwords must never be logged or persisted.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher at the given bcrypt cost. Zero picks the library
// default; out-of-range values are clamped into [MinCost, MaxCost] so a bad
// env value cannot push hashing below the floor.
func NewHasher(cost int) *Hasher {
	switch {
	case cost <= 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash derives a storable digest from password. Each call salts independently,
// so hashing the same password twice yields different digests.
func (h *Hasher) Hash(password []byte) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Compare checks password against a stored digest. nil means match;
// bcrypt.ErrMismatchedHashAndPassword means the password is wrong.
func (h *Hasher) Compare(hash string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}
