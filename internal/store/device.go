package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DeviceStore manages per-device API tokens. A token has the shape
// "<device-id>.<secret>"; only a bcrypt hash of the secret is stored.
type DeviceStore struct {
	db *sql.DB
}

func NewDeviceStore(db *sql.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

// Create registers a device for the user and returns the one-time plaintext
// token. The secret cannot be recovered later.
func (s *DeviceStore) Create(userID, name string) (string, error) {
	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.Exec(
		`INSERT INTO devices (id, user_id, name, token_hash) VALUES (?, ?, ?, ?)`,
		id, userID, name, string(hash),
	)
	if err != nil {
		return "", fmt.Errorf("insert device: %w", err)
	}
	return id + "." + secret, nil
}

// GetUserForToken verifies a presented token and returns the owning user ID,
// or an empty string when the token is unknown or the secret does not match.
func (s *DeviceStore) GetUserForToken(token string) (string, error) {
	id, secret, ok := strings.Cut(token, ".")
	if !ok || id == "" || secret == "" {
		return "", nil
	}

	var userID, hash string
	err := s.db.QueryRow(`SELECT user_id, token_hash FROM devices WHERE id = ?`, id).Scan(&userID, &hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get device: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) != nil {
		return "", nil
	}
	return userID, nil
}

// Delete removes a device, revoking its token.
func (s *DeviceStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}
