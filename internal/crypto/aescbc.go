// Package crypto provides optional at-rest encryption for indexed chunk
// content. Passphrase-to-key derivation uses golang.org/x/crypto/pbkdf2; the
// CBC cipher mode itself has no third-party equivalent in the dependency set
// so it stays on crypto/aes and crypto/cipher from the standard library.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// KeySize is the AES-256 key size in bytes.
const KeySize = 32

// kdfIterations is the PBKDF2 round count. kdfSalt is fixed rather than
// stored per-chunk: every chunk in a collection is encrypted under the same
// derived key, and varying the salt per invocation would mean losing it
// loses the whole collection's content.
const kdfIterations = 100000

var kdfSalt = []byte("semindex-content-encryption-v1")

// DeriveKey turns an arbitrary-length passphrase into a fixed 32-byte AES-256
// key via PBKDF2-HMAC-SHA256, slowing down offline brute-force of the
// passphrase compared to a bare hash.
func DeriveKey(passphrase string) [KeySize]byte {
	derived := pbkdf2.Key([]byte(passphrase), kdfSalt, kdfIterations, KeySize, sha256.New)
	var key [KeySize]byte
	copy(key[:], derived)
	return key
}

// Encrypt AES-256-CBC encrypts plaintext under key, prepending a random IV,
// and returns the result base64-encoded so it can sit in a JSON string
// field alongside unencrypted metadata.
func Encrypt(key [KeySize]byte, plaintext string) (string, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", fmt.Errorf("creating AES cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generating IV: %w", err)
	}

	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out[aes.BlockSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func Decrypt(key [KeySize]byte, ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	if len(raw) < aes.BlockSize || (len(raw)-aes.BlockSize)%aes.BlockSize != 0 {
		return "", errors.New("ciphertext has invalid length")
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", fmt.Errorf("creating AES cipher: %w", err)
	}

	iv := raw[:aes.BlockSize]
	body := raw[aes.BlockSize:]
	plain := make([]byte, len(body))

	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plain, body)

	unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(data, padding...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errors.New("invalid padded data length")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, errors.New("invalid padding bytes")
		}
	}
	return data[:len(data)-padLen], nil
}
