// Package secrets keeps bot passwords and provider API keys out of bot
// records. Values are sealed with age and stored under opaque handles; the
// record only ever carries the handle.
package secrets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"github.com/google/uuid"
	"github.com/xaenox/botpanel/internal/storage"
)

const handlePrefix = "secret://"

// IsHandle reports whether v is a vault handle rather than a plaintext value.
func IsHandle(v string) bool {
	return strings.HasPrefix(v, handlePrefix)
}

type Vault struct {
	store     storage.SecretStore
	identity  *age.X25519Identity
	recipient age.Recipient
}

// NewVault parses an AGE-SECRET-KEY-1... identity.
func NewVault(store storage.SecretStore, identityKey string) (*Vault, error) {
	id, err := age.ParseX25519Identity(strings.TrimSpace(identityKey))
	if err != nil {
		return nil, fmt.Errorf("parsing age identity: %w", err)
	}
	return &Vault{store: store, identity: id, recipient: id.Recipient()}, nil
}

// GenerateIdentity returns a fresh age identity string for configuration.
func GenerateIdentity() (string, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating age identity: %w", err)
	}
	return id.String(), nil
}

// Seal stores plaintext and returns its handle. Empty values and values that
// already are handles are returned unchanged.
func (v *Vault) Seal(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" || IsHandle(plaintext) {
		return plaintext, nil
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, v.recipient)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}

	handle := handlePrefix + uuid.NewString()
	if err := v.store.PutSecret(ctx, handle, buf.Bytes()); err != nil {
		return "", fmt.Errorf("storing sealed secret: %w", err)
	}
	return handle, nil
}

// Open resolves a handle back to its plaintext.
func (v *Vault) Open(ctx context.Context, handle string) (string, error) {
	if !IsHandle(handle) {
		return "", errors.New("not a secret handle")
	}

	sealed, err := v.store.GetSecret(ctx, handle)
	if err != nil {
		return "", fmt.Errorf("loading sealed secret: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(sealed), v.identity)
	if err != nil {
		return "", fmt.Errorf("decrypting secret: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading decrypted secret: %w", err)
	}
	return string(plaintext), nil
}
