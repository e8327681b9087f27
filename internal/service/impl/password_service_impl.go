package impl

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"

	"guardian/internal/service"
)

// AlgoArgon2id is the only scheme written and verified.
const AlgoArgon2id = "argon2id"

// Limits for parameters, whether configured or read back from a credential row.
const (
	maxArgonTime   = 16
	maxArgonMemory = 1 << 20 // KiB
	minKeyLen      = 16
	maxKeyLen      = 64
	minSaltLen     = 8
	maxSaltLen     = 64
)

var errBadArgonParams = errors.New("argon2 params out of range")

type Argon2Params struct {
	Time    uint32 `json:"t"`
	Memory  uint32 `json:"m"` // KiB
	Threads uint8  `json:"p"`
	KeyLen  uint32 `json:"k"`
	SaltLen uint32 `json:"s"`
}

// DefaultArgon2Params is the production hashing policy.
var DefaultArgon2Params = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 1,
	KeyLen:  32,
	SaltLen: 16,
}

func (a Argon2Params) validate() error {
	switch {
	case a.Time == 0 || a.Time > maxArgonTime,
		a.Threads == 0,
		a.Memory < 8*uint32(a.Threads) || a.Memory > maxArgonMemory,
		a.KeyLen < minKeyLen || a.KeyLen > maxKeyLen,
		a.SaltLen < minSaltLen || a.SaltLen > maxSaltLen:
		return fmt.Errorf("%w: %+v", errBadArgonParams, a)
	}
	return nil
}

func (a Argon2Params) key(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, a.Time, a.Memory, a.Threads, a.KeyLen)
}

func decodeArgon2Params(raw []byte) (Argon2Params, error) {
	var a Argon2Params
	if err := json.Unmarshal(raw, &a); err != nil {
		return Argon2Params{}, fmt.Errorf("argon2 params: %w", err)
	}
	return a, a.validate()
}

// PasswordServiceImpl hashes with one argon2id policy. version is bumped by
// hand when the policy changes in a way params alone do not show.
type PasswordServiceImpl struct {
	policy  Argon2Params
	version int
}

func NewPasswordServiceArgon2id() *PasswordServiceImpl {
	return NewPasswordServiceWithParams(DefaultArgon2Params)
}

// NewPasswordServiceWithParams is mostly for tests that need a cheap policy.
func NewPasswordServiceWithParams(p Argon2Params) *PasswordServiceImpl {
	return &PasswordServiceImpl{policy: p, version: 1}
}

func (p *PasswordServiceImpl) Hash(password string) (hash, salt, paramsJSON []byte, algo string, ver int, err error) {
	if password == "" {
		return nil, nil, nil, "", 0, ErrEmptyPassword
	}
	if err := p.policy.validate(); err != nil {
		return nil, nil, nil, "", 0, err
	}
	salt = make([]byte, p.policy.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, nil, "", 0, fmt.Errorf("password salt: %w", err)
	}
	paramsJSON, err = json.Marshal(p.policy)
	if err != nil {
		return nil, nil, nil, "", 0, err
	}
	return p.policy.key(password, salt), salt, paramsJSON, AlgoArgon2id, p.version, nil
}

// Verify never matches a credential in another scheme or with parameters
// outside the accepted limits, and never asks to rehash one either: login
// fails and the stored row is left alone for a password reset.
func (p *PasswordServiceImpl) Verify(password string, cred service.StoredPassword) (rehashNeeded bool, ok bool) {
	if cred.GetAlgo() != AlgoArgon2id {
		return false, false
	}
	stored, err := decodeArgon2Params(cred.GetParamsJSON())
	if err != nil {
		return false, false
	}
	hash, salt := cred.GetHash(), cred.GetSalt()
	if len(hash) != int(stored.KeyLen) || len(salt) < minSaltLen {
		return false, false
	}
	if subtle.ConstantTimeCompare(stored.key(password, salt), hash) != 1 {
		return false, false
	}
	return stored != p.policy || cred.GetPasswordVer() != p.version, true
}
