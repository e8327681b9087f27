package impl

import (
	"encoding/json"
	"errors"
	"testing"

	"guardian/internal/domain"
)

var cheapArgon = Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8}

func hashCredential(t *testing.T, p *PasswordServiceImpl, password string) *domain.PasswordCredential {
	t.Helper()
	hash, salt, params, algo, ver, err := p.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &domain.PasswordCredential{Algo: algo, Hash: hash, Salt: salt, ParamsJSON: params, PasswordVer: ver}
}

func TestPasswordHashAndVerify(t *testing.T) {
	p := NewPasswordServiceWithParams(cheapArgon)
	cred := hashCredential(t, p, "s3cret")
	if cred.Algo != AlgoArgon2id || len(cred.Hash) != 16 || len(cred.Salt) != 8 {
		t.Fatalf("unexpected credential %+v", cred)
	}

	if rehash, ok := p.Verify("s3cret", cred); !ok || rehash {
		t.Fatalf("verify: ok=%v rehash=%v", ok, rehash)
	}
	if rehash, ok := p.Verify("wrong", cred); ok || rehash {
		t.Fatalf("wrong password: ok=%v rehash=%v", ok, rehash)
	}

	again := hashCredential(t, p, "s3cret")
	if string(again.Salt) == string(cred.Salt) {
		t.Fatal("salt must be fresh per hash")
	}
}

func TestPasswordHashRejectsEmptyAndBadPolicy(t *testing.T) {
	p := NewPasswordServiceWithParams(cheapArgon)
	if _, _, _, _, _, err := p.Hash(""); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}

	bad := NewPasswordServiceWithParams(Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 4, SaltLen: 8})
	if _, _, _, _, _, err := bad.Hash("pw"); !errors.Is(err, errBadArgonParams) {
		t.Fatalf("expected errBadArgonParams, got %v", err)
	}
}

func TestPasswordRehashOnPolicyChange(t *testing.T) {
	old := NewPasswordServiceWithParams(cheapArgon)
	cred := hashCredential(t, old, "pw")

	stronger := cheapArgon
	stronger.Time = 2
	cur := NewPasswordServiceWithParams(stronger)
	if rehash, ok := cur.Verify("pw", cred); !ok || !rehash {
		t.Fatalf("old policy: ok=%v rehash=%v", ok, rehash)
	}
	if rehash, ok := cur.Verify("nope", cred); ok || rehash {
		t.Fatalf("wrong password must not ask for rehash: ok=%v rehash=%v", ok, rehash)
	}

	cred.PasswordVer = 0
	if rehash, ok := old.Verify("pw", cred); !ok || !rehash {
		t.Fatalf("old version: ok=%v rehash=%v", ok, rehash)
	}
}

func TestPasswordVerifyRefusesForeignOrCorruptCredentials(t *testing.T) {
	p := NewPasswordServiceWithParams(cheapArgon)

	huge, _ := json.Marshal(Argon2Params{Time: 1, Memory: 1 << 30, Threads: 1, KeyLen: 16, SaltLen: 8})
	cases := map[string]func(c *domain.PasswordCredential){
		"unknown algo":   func(c *domain.PasswordCredential) { c.Algo = "bcrypt" },
		"garbage params": func(c *domain.PasswordCredential) { c.ParamsJSON = []byte("{") },
		"zero params":    func(c *domain.PasswordCredential) { c.ParamsJSON = []byte("{}") },
		"huge memory":    func(c *domain.PasswordCredential) { c.ParamsJSON = huge },
		"short hash":     func(c *domain.PasswordCredential) { c.Hash = c.Hash[:8] },
		"short salt":     func(c *domain.PasswordCredential) { c.Salt = c.Salt[:4] },
	}
	for name, mutate := range cases {
		cred := hashCredential(t, p, "pw")
		mutate(cred)
		if rehash, ok := p.Verify("pw", cred); ok || rehash {
			t.Fatalf("%s: ok=%v rehash=%v", name, ok, rehash)
		}
	}
}
