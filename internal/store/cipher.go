package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fernet/fernet-go"
)

var errUndecryptable = errors.New("credential secret cannot be decrypted with the configured keys")

// Cipher seals provider secrets at rest. The first key encrypts; every key
// is tried on decrypt so old keys can be rotated out.
type Cipher struct {
	keys []*fernet.Key
}

// NewCipher parses a comma separated list of base64 fernet keys.
func NewCipher(keyList string) (*Cipher, error) {
	var encoded []string
	for _, k := range strings.Split(keyList, ",") {
		if k = strings.TrimSpace(k); k != "" {
			encoded = append(encoded, k)
		}
	}
	if len(encoded) == 0 {
		return nil, errors.New("no credential key configured")
	}
	keys, err := fernet.DecodeKeys(encoded...)
	if err != nil {
		return nil, fmt.Errorf("decoding credential key: %w", err)
	}
	return &Cipher{keys: keys}, nil
}

// GenerateKey returns a new base64 fernet key.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", err
	}
	return k.Encode(), nil
}

func (c *Cipher) Encrypt(plain string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plain), c.keys[0])
	if err != nil {
		return "", err
	}
	return string(tok), nil
}

func (c *Cipher) Decrypt(token string) (string, error) {
	msg := fernet.VerifyAndDecrypt([]byte(token), 0, c.keys)
	if msg == nil {
		return "", errUndecryptable
	}
	return string(msg), nil
}
