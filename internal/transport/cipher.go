package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// SecretSize is the length of the shared secret negotiated during login.
const SecretSize = 16

// cfb8 implements 8-bit cipher feedback mode. Each byte is encrypted by
// running the block cipher over a shift register and XOR-ing the first byte
// of the output; the shift register then takes in the ciphertext byte.
type cfb8 struct {
	block   cipher.Block
	sr      []byte
	out     []byte
	decrypt bool
}

func newCFB8(block cipher.Block, iv []byte, decrypt bool) *cfb8 {
	bs := block.BlockSize()
	sr := make([]byte, bs)
	copy(sr, iv)
	return &cfb8{block: block, sr: sr, out: make([]byte, bs), decrypt: decrypt}
}

// XORKeyStream implements cipher.Stream. dst and src may overlap entirely.
func (c *cfb8) XORKeyStream(dst, src []byte) {
	if len(dst) < len(src) {
		panic("cfb8: output smaller than input")
	}
	last := len(c.sr) - 1
	for i := range src {
		c.block.Encrypt(c.out, c.sr)
		in := src[i]
		res := in ^ c.out[0]
		copy(c.sr, c.sr[1:])
		if c.decrypt {
			c.sr[last] = in
		} else {
			c.sr[last] = res
		}
		dst[i] = res
	}
}

// NewCFB8Encrypter returns an AES-CFB8 stream for outgoing bytes. Key and IV
// are both the shared secret.
func NewCFB8Encrypter(secret []byte) (cipher.Stream, error) {
	return newCFB8Stream(secret, false)
}

// NewCFB8Decrypter returns an AES-CFB8 stream for incoming bytes.
func NewCFB8Decrypter(secret []byte) (cipher.Stream, error) {
	return newCFB8Stream(secret, true)
}

func newCFB8Stream(secret []byte, decrypt bool) (cipher.Stream, error) {
	if len(secret) != SecretSize {
		return nil, fmt.Errorf("shared secret must be %d bytes, got %d", SecretSize, len(secret))
	}
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create aes cipher: %w", err)
	}
	return newCFB8(block, secret, decrypt), nil
}
