package crypto

// =============================================================================
// Sealer
// =============================================================================

// Sealer encrypts and decrypts opaque payload bytes with a key derived once
// from a shared passphrase. The server seals payloads before persisting them;
// workers holding the same passphrase and salt open them.
type Sealer struct {
	key []byte
}

// NewSealer derives the sealing key from the passphrase and salt.
func NewSealer(passphrase string, salt []byte) (*Sealer, error) {
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts payload bytes.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	return Encrypt(plaintext, s.key)
}

// Open decrypts sealed payload bytes.
func (s *Sealer) Open(ciphertext []byte) ([]byte, error) {
	return Decrypt(ciphertext, s.key)
}
