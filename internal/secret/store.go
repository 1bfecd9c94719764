package secret

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"ghp-go/internal/config"
)

// Store keeps the Gerrit password on disk so scheduled runs need no
// interactive credentials.
type Store interface {
	// Setup generates the key pair protecting the store. The private key
	// is encrypted with the passphrase.
	Setup(passphrase string) error

	// SetPassword encrypts and stores the Gerrit password. Requires a
	// prior Setup.
	SetPassword(password string) error

	// Password decrypts the stored Gerrit password. The passphrase
	// unlocks the store's private key.
	Password(passphrase string) (string, error)

	// IsConfigured reports whether key pair and password are present.
	IsConfigured() bool
}

// AgeStore implements Store using filippo.io/age with X25519 keys. The
// public key is stored in plaintext so SetPassword needs no passphrase;
// the private key is encrypted with the store passphrase using age's
// scrypt-based passphrase encryption.
type AgeStore struct {
	publicKeyPath  string
	privateKeyPath string
	passwordPath   string
}

var _ Store = (*AgeStore)(nil)

// NewAgeStore creates a store over the configured key and password paths.
func NewAgeStore(cfg config.SecretsConfig) *AgeStore {
	return &AgeStore{
		publicKeyPath:  cfg.PublicKeyPath,
		privateKeyPath: cfg.PrivateKeyPath,
		passwordPath:   cfg.PasswordPath,
	}
}

// Setup generates a new X25519 key pair, stores the public key in
// plaintext, and encrypts the private key with the passphrase.
func (s *AgeStore) Setup(passphrase string) error {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.publicKeyPath), 0700); err != nil {
		return fmt.Errorf("creating public key directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.privateKeyPath), 0700); err != nil {
		return fmt.Errorf("creating private key directory: %w", err)
	}

	if err := os.WriteFile(s.publicKeyPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	privFile, err := os.OpenFile(s.privateKeyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating private key file: %w", err)
	}
	defer privFile.Close()

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	w, err := age.Encrypt(privFile, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, identity.String()+"\n"); err != nil {
		return fmt.Errorf("writing encrypted private key: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted private key: %w", err)
	}

	return nil
}

// SetPassword encrypts the password to the store's public key.
func (s *AgeStore) SetPassword(password string) error {
	recipient, err := s.loadRecipient()
	if err != nil {
		return fmt.Errorf("loading public key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.passwordPath), 0700); err != nil {
		return fmt.Errorf("creating password directory: %w", err)
	}

	f, err := os.OpenFile(s.passwordPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating password file: %w", err)
	}
	defer f.Close()

	w, err := age.Encrypt(f, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, password); err != nil {
		return fmt.Errorf("encrypting password: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}

	return nil
}

// Password unlocks the private key with the passphrase and decrypts the
// stored password.
func (s *AgeStore) Password(passphrase string) (string, error) {
	identity, err := s.unlock(passphrase)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(s.passwordPath)
	if err != nil {
		return "", fmt.Errorf("reading password file: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return "", fmt.Errorf("decrypting password: %w", err)
	}

	password, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading decrypted password: %w", err)
	}
	return strings.TrimRight(string(password), "\n"), nil
}

// IsConfigured returns true if the key pair and password file exist.
func (s *AgeStore) IsConfigured() bool {
	for _, path := range []string{s.publicKeyPath, s.privateKeyPath, s.passwordPath} {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

// unlock decrypts the private key using the passphrase.
func (s *AgeStore) unlock(passphrase string) (age.Identity, error) {
	privData, err := os.ReadFile(s.privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key file: %w", err)
	}

	scrypt, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(privData), scrypt)
	if err != nil {
		return nil, fmt.Errorf("decrypting private key: %w", err)
	}

	keyData, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted private key: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(keyData))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("no identities found in private key")
	}
	return identities[0], nil
}

// loadRecipient reads the public key from disk and parses it.
func (s *AgeStore) loadRecipient() (age.Recipient, error) {
	pubData, err := os.ReadFile(s.publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}

	recipients, err := age.ParseRecipients(bytes.NewReader(pubData))
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients found in public key file")
	}
	return recipients[0], nil
}
