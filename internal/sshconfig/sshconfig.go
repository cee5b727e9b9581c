// Package sshconfig keeps one connection stanza per rotated host in the local
// OpenSSH client configuration, pointing at the host's live-stage key.
package sshconfig

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/vicfd/rsamanager/internal/logutil"
)

// Stanza renders the connection block for host. IdentityFile points at the
// live-stage private key, which is where the host's key sits between runs.
func Stanza(host, user, identityFile string) string {
	return fmt.Sprintf("# config to %s\n\tHost %s\n\tHostName %s\n\tUser %s\n\tIdentityFile %s",
		host, host, host, user, identityFile)
}

// EnsureStanza appends the stanza for host to the config file at path unless
// the exact block is already present. Returns true when the file was changed.
func EnsureStanza(path, host, user, identityFile string) (bool, error) {
	block := Stanza(host, user, identityFile)

	content, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("read ssh config: %w", err)
	}
	if strings.Contains(string(content), block) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return false, fmt.Errorf("create ssh config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return false, fmt.Errorf("open ssh config: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		b.WriteString("\n")
	}
	b.WriteString(block)
	b.WriteString("\n")
	if _, err := f.WriteString(b.String()); err != nil {
		return false, fmt.Errorf("append ssh config: %w", err)
	}

	log.Printf("[sshconfig] added stanza for %s to %s", logutil.SanitizeForLog(host), path)
	return true, nil
}
