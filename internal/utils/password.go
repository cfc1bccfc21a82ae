package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Supported hashing algorithms.
const (
	AlgoBcrypt   = "bcrypt"
	AlgoArgon2id = "argon2id"
)

// ErrUnsupportedAlgorithm is returned by NewPasswordHasher for unknown names.
var ErrUnsupportedAlgorithm = errors.New("unsupported password hashing algorithm")

// Argon2Params controls argon2id cost. MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordHasher hashes new passwords with the configured algorithm and
// verifies stored hashes produced by either supported algorithm, so a
// deployment can switch algorithms without invalidating existing accounts.
type PasswordHasher struct {
	algorithm  string
	bcryptCost int
	argon      Argon2Params
}

// NewPasswordHasher builds a hasher. bcryptCost is only used for bcrypt and
// argon only for argon2id; zero salt/key lengths default to 16/32 bytes.
func NewPasswordHasher(algorithm string, bcryptCost int, argon Argon2Params) (*PasswordHasher, error) {
	switch algorithm {
	case AlgoBcrypt:
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
		}
	case AlgoArgon2id:
		if argon.MemoryKiB == 0 || argon.Iterations == 0 || argon.Parallelism == 0 {
			return nil, errors.New("argon2id parameters must be positive")
		}
		if argon.SaltLength == 0 {
			argon.SaltLength = 16
		}
		if argon.KeyLength == 0 {
			argon.KeyLength = 32
		}
	default:
		return nil, ErrUnsupportedAlgorithm
	}
	return &PasswordHasher{algorithm: algorithm, bcryptCost: bcryptCost, argon: argon}, nil
}

// Hash returns a salted one-way hash of plain.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	if h.algorithm == AlgoArgon2id {
		return h.hashArgon2id(plain)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports whether plain matches hashed. Malformed or unknown hashes
// never match.
func (h *PasswordHasher) Verify(plain, hashed string) bool {
	switch {
	case strings.HasPrefix(hashed, "$argon2id$"):
		return h.verifyArgon2id(plain, hashed)
	case strings.HasPrefix(hashed, "$2"):
		return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
	default:
		return false
	}
}

// Format: $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
func (h *PasswordHasher) hashArgon2id(plain string) (string, error) {
	p := h.argon
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	key := argon2.IDKey([]byte(plain), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKiB, p.Iterations, p.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

func (h *PasswordHasher) verifyArgon2id(plain, encoded string) bool {
	params, salt, expected, ok := decodeArgon2id(encoded)
	if !ok {
		return false
	}
	// refuse attacker-sized parameters; older, cheaper hashes still verify
	limits := h.argon
	if limits.MemoryKiB == 0 {
		limits = Argon2Params{MemoryKiB: 64 * 1024, Iterations: 3, Parallelism: 4}
	}
	if params.MemoryKiB > limits.MemoryKiB*2 || params.Iterations > limits.Iterations*2 || params.Parallelism > limits.Parallelism*2 {
		return false
	}
	key := argon2.IDKey([]byte(plain), salt, params.Iterations, params.MemoryKiB, params.Parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(key, expected) == 1
}

func decodeArgon2id(encoded string) (Argon2Params, []byte, []byte, bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2Params{}, nil, nil, false
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return Argon2Params{}, nil, nil, false
	}
	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Argon2Params{}, nil, nil, false
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Argon2Params{}, nil, nil, false
	}
	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 || len(salt) > 64 {
		return Argon2Params{}, nil, nil, false
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) < 16 || len(key) > 128 {
		return Argon2Params{}, nil, nil, false
	}
	return Argon2Params{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}, salt, key, true
}
