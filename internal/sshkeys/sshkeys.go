package sshkeys

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"log"
	"os"

	"github.com/vicfd/rsamanager/internal/logutil"
	"github.com/vicfd/rsamanager/internal/vault"
	"golang.org/x/crypto/ssh"
)

// rsaKeyBits is the modulus size of generated keys. Tests lower it to keep
// key generation fast.
var rsaKeyBits = 4096

// GenerateKeyPair generates an RSA key pair and returns the OpenSSH-format
// public key and the unencrypted OpenSSH PEM private key.
func GenerateKeyPair() (publicKey, privateKeyPEM []byte, err error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("generate rsa key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal private key: %w", err)
	}
	privateKeyPEM = pem.EncodeToMemory(block)

	sshPub, err := ssh.NewPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("create ssh public key: %w", err)
	}
	publicKey = ssh.MarshalAuthorizedKey(sshPub)

	return publicKey, privateKeyPEM, nil
}

// KeyPairFiles locates a freshly written key pair.
type KeyPairFiles struct {
	PrivatePath string
	PublicPath  string
	Fingerprint string
}

// Forge writes newly generated key pairs into the new stage of a vault.
type Forge struct {
	vault *vault.Vault
}

// NewForge returns a Forge writing into v.
func NewForge(v *vault.Vault) *Forge {
	return &Forge{vault: v}
}

// Generate mints a key pair for host and stores it in the new stage. An
// existing new-stage pair for host is overwritten; callers generate at most
// once per host per run.
func (f *Forge) Generate(host string) (KeyPairFiles, error) {
	if err := vault.CheckHost(host); err != nil {
		return KeyPairFiles{}, err
	}

	pub, priv, err := GenerateKeyPair()
	if err != nil {
		return KeyPairFiles{}, err
	}

	files := KeyPairFiles{
		PrivatePath: f.vault.PrivatePath(host, vault.StageNew),
		PublicPath:  f.vault.PublicPath(host, vault.StageNew),
	}
	if err := writeKeyFile(files.PrivatePath, priv, 0600); err != nil {
		return KeyPairFiles{}, fmt.Errorf("write private key: %w", err)
	}
	if err := writeKeyFile(files.PublicPath, pub, 0644); err != nil {
		return KeyPairFiles{}, fmt.Errorf("write public key: %w", err)
	}

	files.Fingerprint, err = GetPublicKeyFingerprint(pub)
	if err != nil {
		return KeyPairFiles{}, err
	}

	log.Printf("[sshkeys] new key pair for %s written (%s)", logutil.SanitizeForLog(host), files.Fingerprint)
	return files, nil
}

// writeKeyFile writes data with the given mode. The mode is applied with an
// explicit chmod as well, so a file that already existed with looser bits
// is tightened.
func writeKeyFile(path string, data []byte, mode os.FileMode) error {
	if err := os.WriteFile(path, data, mode); err != nil {
		return err
	}
	return os.Chmod(path, mode)
}

// LoadPublicKey reads a public key file (OpenSSH authorized_keys format).
func LoadPublicKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	return data, nil
}

