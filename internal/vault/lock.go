package vault

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

const lockFileName = ".rsamanager.lock"

// ErrLocked is returned by Lock when another process holds the vault.
var ErrLocked = errors.New("vault is locked by another rotation run")

// RunLock is an exclusive advisory lock held for the length of one rotation run.
type RunLock struct {
	fl *flock.Flock
}

// Lock takes the run lock without blocking. The vault root must exist.
func (v *Vault) Lock() (*RunLock, error) {
	fl := flock.New(filepath.Join(v.root, lockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock vault: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, fl.Path())
	}
	return &RunLock{fl: fl}, nil
}

// Unlock releases the run lock.
func (l *RunLock) Unlock() error {
	return l.fl.Unlock()
}
