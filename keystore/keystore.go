// Package keystore holds provider API keys encrypted at rest in memory,
// one entry per (session, provider). Plaintext keys exist only transiently:
// they are encrypted on store and decrypted on every retrieve.
package keystore

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/draftline/draftline/internal/util"
)

var (
	// ErrNotFound is returned when no key is stored for a session.
	ErrNotFound = errors.New("no key stored for session")
	// ErrEmptyKey is returned when the plaintext is empty after trimming.
	ErrEmptyKey = errors.New("api key is empty")
)

const maskWidth = 8

// Mask returns the display form of a plaintext key: a fixed-width run of
// asterisks followed by the final four characters.
func Mask(plaintext string) string {
	suffix := plaintext
	if len(plaintext) > 4 {
		suffix = plaintext[len(plaintext)-4:]
	}
	return strings.Repeat("*", maskWidth) + suffix
}

type entry struct {
	ciphertext []byte
	masked     string
}

// Store is an encrypted in-memory key store for one provider. Multiple
// stores share a single master key; the AAD binds each ciphertext to its
// (session, provider) pair so entries cannot be grafted across either.
type Store struct {
	provider string
	master   *MasterKey

	mu      sync.Mutex
	entries map[string]entry
}

// New creates a key store for the named provider.
func New(provider string, master *MasterKey) *Store {
	return &Store{
		provider: provider,
		master:   master,
		entries:  make(map[string]entry),
	}
}

// Provider returns the provider tag this store serves.
func (s *Store) Provider() string {
	return s.provider
}

func (s *Store) aad(session string) []byte {
	return []byte(session + "\x00" + s.provider)
}

// Store encrypts plaintext and replaces any prior entry for the session.
// The masked form is derived once here and reused by Masked.
func (s *Store) Store(session, plaintext string) error {
	plaintext = strings.TrimSpace(plaintext)
	if plaintext == "" {
		return ErrEmptyKey
	}

	// Encrypt outside the lock.
	raw := []byte(plaintext)
	ciphertext, err := s.master.seal(raw, s.aad(session))
	util.WipeBytes(raw)
	if err != nil {
		return fmt.Errorf("encrypting key: %w", err)
	}
	masked := Mask(plaintext)

	s.mu.Lock()
	if prior, ok := s.entries[session]; ok {
		util.WipeBytes(prior.ciphertext)
	}
	s.entries[session] = entry{ciphertext: ciphertext, masked: masked}
	s.mu.Unlock()
	return nil
}

// Exists reports whether a key is stored for the session.
func (s *Store) Exists(session string) bool {
	s.mu.Lock()
	_, ok := s.entries[session]
	s.mu.Unlock()
	return ok
}

// Retrieve decrypts and returns the stored plaintext. The plaintext is
// never cached; every call pays for a decryption.
func (s *Store) Retrieve(session string) (string, error) {
	s.mu.Lock()
	e, ok := s.entries[session]
	var ciphertext []byte
	if ok {
		ciphertext = util.CopyBytes(e.ciphertext)
	}
	s.mu.Unlock()
	if !ok {
		return "", ErrNotFound
	}

	// Decrypt outside the lock, on a private copy of the ciphertext so a
	// concurrent Delete cannot wipe it mid-read.
	plain, err := s.master.open(ciphertext, s.aad(session))
	util.WipeBytes(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decrypting key: %w", err)
	}
	out := string(plain)
	util.WipeBytes(plain)
	return out, nil
}

// Masked returns the display form captured at store time.
func (s *Store) Masked(session string) (string, error) {
	s.mu.Lock()
	e, ok := s.entries[session]
	s.mu.Unlock()
	if !ok {
		return "", ErrNotFound
	}
	return e.masked, nil
}

// Delete wipes the ciphertext buffer and removes the mapping. Deleting an
// absent session is a no-op.
func (s *Store) Delete(session string) {
	s.mu.Lock()
	if e, ok := s.entries[session]; ok {
		util.WipeBytes(e.ciphertext)
		delete(s.entries, session)
	}
	s.mu.Unlock()
}

// Purge wipes and removes every entry. Used on shutdown.
func (s *Store) Purge() {
	s.mu.Lock()
	for session, e := range s.entries {
		util.WipeBytes(e.ciphertext)
		delete(s.entries, session)
	}
	s.mu.Unlock()
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	n := len(s.entries)
	s.mu.Unlock()
	return n
}
