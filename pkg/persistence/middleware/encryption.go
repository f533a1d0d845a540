package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/aretw0/mosaic/pkg/ports"
)

var (
	// EnvelopeCell holds the ciphertext inside an encrypted snapshot.
	EnvelopeCell = domain.Cell("__encrypted__", "snapshot")
	// KeyCell names the key the envelope was sealed with.
	KeyCell = domain.Cell("__encrypted__", "key_id")
)

// ErrNotEncrypted is returned when a stored snapshot carries no envelope.
var ErrNotEncrypted = errors.New("snapshot is missing encrypted data envelope")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey seals new snapshots. Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys open snapshots sealed before a key rotation.
	FallbackKeys [][]byte
}

type sealKey struct {
	id   string
	aead cipher.AEAD
}

type encryptionMiddleware struct {
	next ports.SnapshotStore
	keys []sealKey // keys[0] is the active key
}

// NewEncryptionMiddleware seals every snapshot into a single AES-256-GCM
// envelope cell. The session ID is bound as additional data, so an envelope
// copied to another session does not open. It panics on keys that are not 32 bytes.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	keys := make([]sealKey, 0, 1+len(config.FallbackKeys))
	for i, raw := range append([][]byte{config.ActiveKey}, config.FallbackKeys...) {
		k, err := newSealKey(raw)
		if err != nil {
			panic(fmt.Sprintf("encryption key %d: %v", i, err))
		}
		keys = append(keys, k)
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &encryptionMiddleware{next: next, keys: keys}
	}
}

func newSealKey(raw []byte) (sealKey, error) {
	if len(raw) != 32 {
		return sealKey{}, fmt.Errorf("must be 32 bytes (AES-256), got %d", len(raw))
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return sealKey{}, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return sealKey{}, err
	}
	sum := sha256.Sum256(raw)
	return sealKey{id: hex.EncodeToString(sum[:4]), aead: aead}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	plain, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	active := m.keys[0]
	nonce := make([]byte, active.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to encrypt snapshot: %w", err)
	}
	sealed := active.aead.Seal(nonce, nonce, plain, []byte(sessionID))

	// Only the sequence stays visible, for monitoring.
	envelope := &domain.Snapshot{
		Seq: snap.Seq,
		Cells: map[domain.CellID]domain.CellState{
			EnvelopeCell: {Value: domain.Text(base64.StdEncoding.EncodeToString(sealed)), Status: domain.StatusOK},
			KeyCell:      {Value: domain.Text(active.id), Status: domain.StatusOK},
		},
	}
	return m.next.Save(ctx, sessionID, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	envelope, err := m.next.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	encoded, ok := envelope.Value(EnvelopeCell).AsText()
	if !ok {
		return nil, ErrNotEncrypted
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}
	keyID, _ := envelope.Value(KeyCell).AsText()

	plain, err := m.open(sealed, keyID, []byte(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(plain, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted snapshot: %w", err)
	}
	return &snap, nil
}

// open tries the key named by keyID first, then every key in order.
func (m *encryptionMiddleware) open(sealed []byte, keyID string, ad []byte) ([]byte, error) {
	order := make([]sealKey, 0, len(m.keys)+1)
	for _, k := range m.keys {
		if k.id == keyID {
			order = append(order, k)
		}
	}
	order = append(order, m.keys...)

	for _, k := range order {
		n := k.aead.NonceSize()
		if len(sealed) < n {
			return nil, errors.New("ciphertext too short")
		}
		if plain, err := k.aead.Open(nil, sealed[:n], sealed[n:], ad); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func (m *encryptionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
