package keystore

import (
	"encoding/base64"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/draftline/draftline/internal/util"
)

// hkdfInfo binds derived master keys to this subsystem so the same
// configured secret cannot be reused verbatim elsewhere.
var hkdfInfo = []byte("draftline/keystore/master/v1")

// MasterKey is the process-scoped symmetric key all key stores share.
// The raw key lives in a memguard Enclave (encrypted at rest in memory)
// and is only opened for the duration of a single seal or open.
type MasterKey struct {
	enclave *memguard.Enclave
}

// NewMasterKey generates a fresh random master key. The key lives for the
// process lifetime; everything encrypted under it is forfeit on restart.
func NewMasterKey() (*MasterKey, error) {
	raw, err := util.NewAESKey()
	if err != nil {
		return nil, fmt.Errorf("generating master key: %w", err)
	}
	// NewEnclave wipes raw.
	return &MasterKey{enclave: memguard.NewEnclave(raw)}, nil
}

// MasterKeyFromBase64 derives a master key from a configured base64
// secret via HKDF-SHA256. The configured secret itself is never used
// directly as key material.
func MasterKeyFromBase64(encoded string) (*MasterKey, error) {
	seed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	if len(seed) == 0 {
		return nil, fmt.Errorf("encryption key is empty")
	}
	defer util.WipeBytes(seed)

	raw, err := util.HKDF(seed, nil, hkdfInfo)
	if err != nil {
		return nil, fmt.Errorf("deriving master key: %w", err)
	}
	return &MasterKey{enclave: memguard.NewEnclave(raw)}, nil
}

// seal encrypts plaintext under the master key with the given AAD.
func (mk *MasterKey) seal(plaintext, aad []byte) ([]byte, error) {
	buf, err := mk.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("opening master key enclave: %w", err)
	}
	defer buf.Destroy()
	return util.SealAES(plaintext, buf.Bytes(), aad)
}

// open decrypts ciphertext sealed under the master key with the given AAD.
func (mk *MasterKey) open(ciphertext, aad []byte) ([]byte, error) {
	buf, err := mk.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("opening master key enclave: %w", err)
	}
	defer buf.Destroy()
	return util.OpenAES(ciphertext, buf.Bytes(), aad)
}
