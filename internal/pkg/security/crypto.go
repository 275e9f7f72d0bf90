package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/lumenisp/netbill/internal/pkg/env"
)

const (
	keyIterations = 4096
	keyLength     = 32
)

// EncryptString encrypts a secret with AES-256-GCM using the application key.
// PPPoE and router passwords must round-trip (the router needs the plaintext
// on every provisioning call), so hashing is not an option here.
func EncryptString(plaintext string) (string, error) {
	key, err := derivedKey()
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawStdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString.
func DecryptString(encoded string) (string, error) {
	key, err := derivedKey()
	if err != nil {
		return "", err
	}

	sealed, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext encoding: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(sealed) < gcm.NonceSize() {
		return "", errors.New("ciphertext shorter than nonce")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", errors.New("decryption failed")
	}
	return string(plaintext), nil
}

func derivedKey() ([]byte, error) {
	appKey := env.GetEnv("APP_KEY", "")
	if appKey == "" {
		return nil, errors.New("APP_KEY is required for secret encryption")
	}
	salt := env.GetEnv("APP_KEY_SALT", "netbill-secrets")
	return pbkdf2.Key([]byte(appKey), []byte(salt), keyIterations, keyLength, sha256.New), nil
}
