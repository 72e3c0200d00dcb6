package capsule

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"

	"github.com/d1str0/pkcs7"
	"github.com/pkg/errors"
)

// KeySize is the length of the symmetric key, AES-256.
const KeySize = 32

// A DecodeError signals sealed content that cannot be read back:
// truncated or tampered input, a key mismatch or corrupted plaintext.
// It is fatal for the affected capsule, retrying cannot repair it.
type DecodeError struct {
	cause error
}

// Error implements error interface.
func (e *DecodeError) Error() string {
	return "could not unseal content: " + e.cause.Error()
}

// Unwrap returns the underlying failure.
func (e *DecodeError) Unwrap() error {
	return e.cause
}

// IsDecodeError returns true if err is a DecodeError.
func IsDecodeError(err error) bool {
	var derr *DecodeError
	return errors.As(err, &derr)
}

// A Codec seals bundles to a storable string and back with a single
// process-wide symmetric key.
type Codec struct {
	key []byte
}

// NewCodec returns a codec for the given 32 bytes key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, errors.Errorf("invalid key length: %d bytes", len(key))
	}

	k := make([]byte, KeySize)
	copy(k, key)
	return &Codec{key: k}, nil
}

// Seal serializes the bundle and encrypts it with AES-CBC under a
// fresh random IV. The output is hex(iv || ciphertext).
func (c *Codec) Seal(b *Bundle) (string, error) {
	payload, err := json.Marshal(b)
	if err != nil {
		return "", errors.Wrap(err, "could not serialize bundle")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", errors.Wrap(err, "could not create cipher")
	}

	ciphertext, err := pkcs7.Pad(payload, block.BlockSize())
	if err != nil {
		return "", errors.Wrap(err, "could not pkcs7 pad payload")
	}

	iv := make([]byte, block.BlockSize())
	if _, err := rand.Read(iv); err != nil {
		return "", errors.Wrap(err, "could not generate IV")
	}

	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, ciphertext)

	return hex.EncodeToString(iv) + hex.EncodeToString(ciphertext), nil
}

// Unseal decrypts a sealed string back to a bundle.
func (c *Codec) Unseal(sealed string) (*Bundle, error) {
	raw, err := hex.DecodeString(sealed)
	if err != nil {
		return nil, &DecodeError{cause: errors.Wrap(err, "could not decode hex")}
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, errors.Wrap(err, "could not create cipher")
	}

	bs := block.BlockSize()
	if len(raw) < 2*bs || len(raw)%bs != 0 {
		return nil, &DecodeError{cause: errors.New("truncated sealed content")}
	}

	iv, ciphertext := raw[:bs], raw[bs:]
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(ciphertext, ciphertext)

	payload, err := pkcs7.Unpad(ciphertext)
	if err != nil {
		return nil, &DecodeError{cause: errors.Wrap(err, "could not pkcs7 unpad payload")}
	}

	b := NewBundle()
	if err := json.Unmarshal(payload, b); err != nil {
		return nil, &DecodeError{cause: errors.Wrap(err, "could not parse bundle")}
	}
	return b, nil
}
