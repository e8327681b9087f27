package service

// StoredPassword is the persisted form of a password that PasswordService
// verifies against.
type StoredPassword interface {
	GetAlgo() string
	GetHash() []byte
	GetSalt() []byte
	GetParamsJSON() []byte
	GetPasswordVer() int
}

type PasswordService interface {
	Hash(password string) (hash, salt, paramsJSON []byte, algo string, ver int, err error)
	// Verify reports ok when password matches cred, and rehashNeeded when it
	// matched under a policy other than the current one.
	Verify(password string, cred StoredPassword) (rehashNeeded bool, ok bool)
}
