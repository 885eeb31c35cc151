package persist

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// EncryptedAdapter wraps another adapter and seals every document with
// AES-256-GCM, so the backing store only ever sees ciphertext. The nonce is
// prepended to the stored blob.
type EncryptedAdapter struct {
	inner Adapter
	aead  cipher.AEAD
}

// NewEncryptedAdapter expects a hex-encoded 32-byte key.
func NewEncryptedAdapter(inner Adapter, hexKey string) (*EncryptedAdapter, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	return &EncryptedAdapter{inner: inner, aead: aead}, nil
}

func (a *EncryptedAdapter) Get(ctx context.Context, key string) ([]byte, bool, error) {
	sealed, found, err := a.inner.Get(ctx, key)
	if err != nil || !found {
		return nil, found, err
	}
	if len(sealed) < a.aead.NonceSize() {
		return nil, false, fmt.Errorf("document %q: sealed blob too short", key)
	}
	nonce, ciphertext := sealed[:a.aead.NonceSize()], sealed[a.aead.NonceSize():]
	doc, err := a.aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return nil, false, fmt.Errorf("open document %q: %w", key, err)
	}
	return doc, true, nil
}

func (a *EncryptedAdapter) Put(ctx context.Context, key string, doc []byte) error {
	nonce := make([]byte, a.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := a.aead.Seal(nonce, nonce, doc, []byte(key))
	return a.inner.Put(ctx, key, sealed)
}

func (a *EncryptedAdapter) Delete(ctx context.Context, key string) error {
	return a.inner.Delete(ctx, key)
}

func (a *EncryptedAdapter) Close() error {
	return a.inner.Close()
}
