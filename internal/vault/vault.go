package vault

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/vicfd/rsamanager/internal/logutil"
)

// Stage is one of the four lifecycle directories of the vault.
type Stage string

const (
	StageNew     Stage = "new"
	StageLive    Stage = "live"
	StageBackup  Stage = "backup"
	StageArchive Stage = "archive"
)

// Stages lists every stage in lifecycle order.
var Stages = []Stage{StageNew, StageLive, StageBackup, StageArchive}

const publicKeySuffix = ".pub"

var (
	// ErrNotFound is returned when neither half of a pair exists at the source stage.
	ErrNotFound = errors.New("key pair not found")
	// ErrSlotOccupied is returned when the destination stage already holds a
	// pair (or half of one) for the host.
	ErrSlotOccupied = errors.New("destination slot occupied")
)

// InconsistentPairError reports a pair whose private and public halves are not
// in the same stage. The vault is left as found; an operator has to inspect it.
type InconsistentPairError struct {
	Host   string
	Stage  Stage
	Detail string
	Err    error
}

func (e *InconsistentPairError) Error() string {
	msg := fmt.Sprintf("inconsistent key pair for %s in %s: %s", e.Host, e.Stage, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InconsistentPairError) Unwrap() error { return e.Err }

// hostPattern accepts DNS names, short names and IPv4 addresses. The first
// character cannot be a dot or a dash, which keeps "." and ".." out and stops
// a host from being read as an ssh option.
var hostPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._-]*$`)

const maxHostLen = 253

// CheckHost rejects host identifiers that cannot be used as a file name
// inside a stage directory, an inventory host entry or an ssh config Host
// line. Whitespace, control characters, path separators and INI or ssh
// config metacharacters are all refused.
func CheckHost(host string) error {
	if len(host) > maxHostLen || !hostPattern.MatchString(host) {
		return fmt.Errorf("invalid host identifier %q", host)
	}
	return nil
}

// Vault is the on-disk key store rooted at a directory holding one
// subdirectory per stage. Each stage holds at most one pair per host, stored
// as <host> (private) and <host>.pub (public).
//
// Vault does no locking of its own; see Lock.
type Vault struct {
	root string
}

// New returns a Vault rooted at dir. Call Bootstrap before use.
func New(dir string) *Vault {
	return &Vault{root: dir}
}

// Dir returns the directory of a stage.
func (v *Vault) Dir(stage Stage) string {
	return filepath.Join(v.root, string(stage))
}

// PrivatePath returns where the private key of host lives in stage.
func (v *Vault) PrivatePath(host string, stage Stage) string {
	return filepath.Join(v.Dir(stage), host)
}

// PublicPath returns where the public key of host lives in stage.
func (v *Vault) PublicPath(host string, stage Stage) string {
	return v.PrivatePath(host, stage) + publicKeySuffix
}

// Bootstrap creates every stage directory with mode 0700. Directories that
// already exist are left alone.
func (v *Vault) Bootstrap() error {
	for _, stage := range Stages {
		if err := os.MkdirAll(v.Dir(stage), 0700); err != nil {
			return fmt.Errorf("create %s stage: %w", stage, err)
		}
	}
	return nil
}

// PairExists reports whether either half of the pair of host is present in
// stage. A lone half still counts so that MovePair gets to report it.
func (v *Vault) PairExists(host string, stage Stage) bool {
	return fileExists(v.PrivatePath(host, stage)) || fileExists(v.PublicPath(host, stage))
}

// MovePair moves the key pair of host from one stage to another. Both halves
// must be present at the source and absent at the destination.
func (v *Vault) MovePair(host string, from, to Stage) error {
	return v.movePair(host, from, v.PrivatePath(host, to), to)
}

// maxArchiveSuffix bounds the search for a free archive name under one tag.
const maxArchiveSuffix = 1000

// ArchivePair moves the key pair of host into the archive stage, prefixing
// both file names with tag. When tag is already taken for host (two runs in
// the same second) a "-2", "-3", ... suffix is appended to the tag. It
// returns the private key path the pair was archived to.
func (v *Vault) ArchivePair(host string, from Stage, tag string) (string, error) {
	for n := 1; n <= maxArchiveSuffix; n++ {
		t := tag
		if n > 1 {
			t = tag + "-" + strconv.Itoa(n)
		}
		dst := v.ArchivedPath(host, t)
		if fileExists(dst) || fileExists(dst+publicKeySuffix) {
			continue
		}
		if err := v.movePair(host, from, dst, StageArchive); err != nil {
			return "", err
		}
		return dst, nil
	}
	return "", fmt.Errorf("archive %s pair for %s under %s: %w", from, host, tag, ErrSlotOccupied)
}

// ArchivedPath returns the private key path for host archived under tag.
func (v *Vault) ArchivedPath(host, tag string) string {
	return filepath.Join(v.Dir(StageArchive), tag+"_"+host)
}

// DeletePair removes both halves of the pair of host from stage. A pair that
// is already gone is not an error.
func (v *Vault) DeletePair(host string, stage Stage) error {
	var errs []error
	for _, p := range []string{v.PrivatePath(host, stage), v.PublicPath(host, stage)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("delete %s pair for %s: %w", stage, host, errors.Join(errs...))
	}
	log.Printf("[vault] deleted %s pair for %s", stage, logutil.SanitizeForLog(host))
	return nil
}

func (v *Vault) movePair(host string, from Stage, dstPriv string, to Stage) error {
	srcPriv := v.PrivatePath(host, from)
	srcPub := srcPriv + publicKeySuffix
	dstPub := dstPriv + publicKeySuffix

	privOK, pubOK := fileExists(srcPriv), fileExists(srcPub)
	switch {
	case !privOK && !pubOK:
		return fmt.Errorf("move %s pair for %s: %w", from, host, ErrNotFound)
	case privOK != pubOK:
		return &InconsistentPairError{Host: host, Stage: from, Detail: halfDetail(privOK)}
	}

	if fileExists(dstPriv) || fileExists(dstPub) {
		return fmt.Errorf("move %s pair for %s to %s: %w", from, host, to, ErrSlotOccupied)
	}

	if err := os.Rename(srcPriv, dstPriv); err != nil {
		return fmt.Errorf("move %s private key for %s to %s: %w", from, host, to, err)
	}
	if err := os.Rename(srcPub, dstPub); err != nil {
		// Private half already moved. Leave both halves where they are.
		return &InconsistentPairError{
			Host:   host,
			Stage:  from,
			Detail: fmt.Sprintf("private key moved to %s but public key stayed behind", to),
			Err:    err,
		}
	}

	log.Printf("[vault] moved %s pair for %s to %s", from, logutil.SanitizeForLog(host), to)
	return nil
}

func halfDetail(privOK bool) string {
	if privOK {
		return "public key missing"
	}
	return "private key missing"
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
