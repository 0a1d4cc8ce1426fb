package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

const (
	AlgoPBKDF2SHA256 = "pbkdf2-sha256"
	AlgoArgon2id     = "argon2id"

	MinPBKDF2Iterations     = 100_000
	DefaultPBKDF2Iterations = 310_000
)

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLen     uint32
	keyLen      uint32
}

var defaultArgon2idParams = argon2Params{
	memory:      64 * 1024,
	iterations:  3,
	parallelism: 2,
	saltLen:     16,
	keyLen:      32,
}

const (
	pbkdf2SaltLen = 16
	pbkdf2KeyLen  = 32
)

// Hasher produces self-describing password hashes: the algorithm and its
// parameters are encoded in the output, so Verify keeps working after the
// configured algorithm or cost changes.
type Hasher struct {
	Algorithm        string
	PBKDF2Iterations int
}

func NewHasher(algorithm string, pbkdf2Iterations int) (Hasher, error) {
	if algorithm == "" {
		algorithm = AlgoPBKDF2SHA256
	}
	if pbkdf2Iterations == 0 {
		pbkdf2Iterations = DefaultPBKDF2Iterations
	}
	switch algorithm {
	case AlgoPBKDF2SHA256, AlgoArgon2id:
	default:
		return Hasher{}, fmt.Errorf("unsupported password algorithm %q", algorithm)
	}
	if pbkdf2Iterations < MinPBKDF2Iterations {
		return Hasher{}, fmt.Errorf("pbkdf2 iterations must be at least %d", MinPBKDF2Iterations)
	}
	return Hasher{Algorithm: algorithm, PBKDF2Iterations: pbkdf2Iterations}, nil
}

func DefaultHasher() Hasher {
	return Hasher{Algorithm: AlgoPBKDF2SHA256, PBKDF2Iterations: DefaultPBKDF2Iterations}
}

func (h Hasher) Hash(plaintext string) (string, error) {
	switch h.Algorithm {
	case AlgoArgon2id:
		return hashArgon2id(plaintext, defaultArgon2idParams)
	case AlgoPBKDF2SHA256, "":
		iters := h.PBKDF2Iterations
		if iters == 0 {
			iters = DefaultPBKDF2Iterations
		}
		return hashPBKDF2(plaintext, iters)
	default:
		return "", fmt.Errorf("unsupported password algorithm %q", h.Algorithm)
	}
}

// Verify reports whether plaintext matches hash. The algorithm is taken from
// the hash itself, not from the Hasher configuration.
func (h Hasher) Verify(hash, plaintext string) (bool, error) {
	return VerifyPassword(hash, plaintext)
}

func VerifyPassword(hash, plaintext string) (bool, error) {
	switch {
	case strings.HasPrefix(hash, "$"+AlgoArgon2id+"$"):
		params, salt, key, err := parseArgon2idHash(hash)
		if err != nil {
			return false, err
		}
		otherKey := argon2.IDKey([]byte(plaintext), salt, params.iterations, params.memory, params.parallelism, params.keyLen)
		return subtle.ConstantTimeCompare(key, otherKey) == 1, nil
	case strings.HasPrefix(hash, "$"+AlgoPBKDF2SHA256+"$"):
		iters, salt, key, err := parsePBKDF2Hash(hash)
		if err != nil {
			return false, err
		}
		otherKey := pbkdf2.Key([]byte(plaintext), salt, iters, len(key), sha256.New)
		return subtle.ConstantTimeCompare(key, otherKey) == 1, nil
	default:
		return false, errors.New("unknown password hash format")
	}
}

func hashPBKDF2(plaintext string, iterations int) (string, error) {
	salt := make([]byte, pbkdf2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := pbkdf2.Key([]byte(plaintext), salt, iterations, pbkdf2KeyLen, sha256.New)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$%s$i=%d$%s$%s",
		AlgoPBKDF2SHA256,
		iterations,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

func parsePBKDF2Hash(hash string) (int, []byte, []byte, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 5 || parts[1] != AlgoPBKDF2SHA256 {
		return 0, nil, nil, errors.New("invalid pbkdf2 hash format")
	}
	k, v, ok := strings.Cut(parts[2], "=")
	if !ok || k != "i" {
		return 0, nil, nil, errors.New("invalid pbkdf2 params")
	}
	iters, err := strconv.Atoi(v)
	if err != nil || iters <= 0 {
		return 0, nil, nil, errors.New("invalid pbkdf2 iteration count")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return 0, nil, nil, errors.New("invalid pbkdf2 salt")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, nil, nil, errors.New("invalid pbkdf2 key")
	}
	if len(salt) == 0 || len(key) == 0 {
		return 0, nil, nil, errors.New("invalid pbkdf2 salt/key")
	}
	return iters, salt, key, nil
}

func hashArgon2id(plaintext string, p argon2Params) (string, error) {
	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(plaintext), salt, p.iterations, p.memory, p.parallelism, p.keyLen)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		p.memory,
		p.iterations,
		p.parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

func parseArgon2idHash(hash string) (argon2Params, []byte, []byte, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != AlgoArgon2id {
		return argon2Params{}, nil, nil, errors.New("invalid argon2id hash format")
	}
	if parts[2] != "v=19" {
		return argon2Params{}, nil, nil, errors.New("unsupported argon2 version")
	}

	var p argon2Params
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return argon2Params{}, nil, nil, errors.New("invalid argon2 params")
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return argon2Params{}, nil, nil, errors.New("invalid argon2 memory param")
			}
			p.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return argon2Params{}, nil, nil, errors.New("invalid argon2 time param")
			}
			p.iterations = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil {
				return argon2Params{}, nil, nil, errors.New("invalid argon2 parallelism param")
			}
			p.parallelism = uint8(n)
		default:
			return argon2Params{}, nil, nil, errors.New("unknown argon2 param")
		}
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return argon2Params{}, nil, nil, errors.New("invalid argon2 salt")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return argon2Params{}, nil, nil, errors.New("invalid argon2 key")
	}
	p.saltLen = uint32(len(salt))
	p.keyLen = uint32(len(key))
	if p.saltLen == 0 || p.keyLen == 0 {
		return argon2Params{}, nil, nil, errors.New("invalid argon2 salt/key")
	}

	return p, salt, key, nil
}
