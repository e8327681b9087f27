// Package tokencipher encrypts the short pairing tokens handed to child
// devices. Tokens are base64(IV || AES-256-CBC ciphertext) with PKCS#7 padding.
package tokencipher

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	KeySize = 32
	ivSize  = aes.BlockSize
)

var (
	ErrKeyTooShort = errors.New("tokencipher: secret shorter than 32 bytes")
	ErrDecryption  = errors.New("tokencipher: decryption failed")
)

// SymmetricCipher is what callers depend on; Cipher is the only implementation.
type SymmetricCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

type Cipher struct {
	block cipher.Block
	rand  io.Reader
}

// New keys the cipher with the first 32 bytes of secret.
func New(secret []byte) (*Cipher, error) {
	if len(secret) < KeySize {
		return nil, ErrKeyTooShort
	}
	key := make([]byte, KeySize)
	copy(key, secret[:KeySize])
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &Cipher{block: block, rand: rand.Reader}, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("tokencipher: read iv: %w", err)
	}
	padded := pad([]byte(plaintext), aes.BlockSize)

	out := make([]byte, ivSize+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out[ivSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (c *Cipher) Decrypt(token string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: bad encoding", ErrDecryption)
	}
	if len(raw) < ivSize+aes.BlockSize || (len(raw)-ivSize)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: bad length", ErrDecryption)
	}
	iv, body := raw[:ivSize], raw[ivSize:]

	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, body)
	plain, err = unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append([]byte(nil), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecryption)
		}
	}
	return b[:len(b)-n], nil
}

// RandomSecret returns n bytes from crypto/rand, suitable for PAIRING_SECRET.
func RandomSecret(n int) ([]byte, error) {
	if n < KeySize {
		return nil, ErrKeyTooShort
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}
