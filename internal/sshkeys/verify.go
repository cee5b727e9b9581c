package sshkeys

import (
	"fmt"

	"golang.org/x/crypto/ssh"
)

// FingerprintMismatchError is returned when a key fingerprint does not match
// the expected value.
type FingerprintMismatchError struct {
	Expected string
	Actual   string
}

func (e *FingerprintMismatchError) Error() string {
	return fmt.Sprintf("SSH key fingerprint mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// GetPublicKeyFingerprint calculates the SHA256 fingerprint of a public key in
// authorized_keys format. Returns the fingerprint as SHA256:xxx.
func GetPublicKeyFingerprint(publicKey []byte) (string, error) {
	if len(publicKey) == 0 {
		return "", fmt.Errorf("get fingerprint: public key is empty")
	}

	parsed, _, _, _, err := ssh.ParseAuthorizedKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("get fingerprint: parse public key: %w", err)
	}

	return ssh.FingerprintSHA256(parsed), nil
}

// FileFingerprint reads the public key at path and returns its fingerprint.
func FileFingerprint(path string) (string, error) {
	pub, err := LoadPublicKey(path)
	if err != nil {
		return "", err
	}
	return GetPublicKeyFingerprint(pub)
}

// VerifyFingerprint checks that the public key file at path has the expected
// fingerprint. Returns a *FingerprintMismatchError if they differ.
func VerifyFingerprint(path, expectedFingerprint string) error {
	actual, err := FileFingerprint(path)
	if err != nil {
		return fmt.Errorf("verify fingerprint: %w", err)
	}

	if actual != expectedFingerprint {
		return &FingerprintMismatchError{
			Expected: expectedFingerprint,
			Actual:   actual,
		}
	}

	return nil
}
