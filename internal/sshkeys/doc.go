// Package sshkeys mints the RSA key pairs handed out during a rotation run.
//
// [GenerateKeyPair] creates a 4096-bit RSA key and returns the private key as
// an unencrypted OpenSSH PEM block and the public key in single-line
// authorized_keys format. [Forge] writes that pair into the vault's new stage
// as <host> (mode 0600) and <host>.pub (mode 0644), replacing any pair already
// there.
//
// [GetPublicKeyFingerprint] and [VerifyFingerprint] give the SHA256
// fingerprints used in log lines and to check that a promoted key is the one
// that was minted.
package sshkeys
