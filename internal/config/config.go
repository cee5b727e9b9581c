package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	VaultDir      string `envconfig:"VAULT_DIR" default:"~/.ssh"`
	SSHConfigPath string `envconfig:"SSH_CONFIG" default:"~/.ssh/config"`
	DefaultUser   string `envconfig:"DEFAULT_USER" default:"ansible"`

	// Attempt budget shared by the install, verify and remove phases.
	MaxAttempts int `envconfig:"MAX_ATTEMPTS" default:"3"`

	// Remote execution engine
	AnsibleBinary      string `envconfig:"ANSIBLE_BINARY" default:"ansible-playbook"`
	AnsibleInventory   string `envconfig:"ANSIBLE_INVENTORY" default:"ansible/inventories/all.ini"`
	AnsiblePlaybookDir string `envconfig:"ANSIBLE_PLAYBOOK_DIR" default:"ansible/playbook"`
	// Directory for the per-phase scope inventories; empty means the system temp dir.
	ScratchDir         string `envconfig:"SCRATCH_DIR" default:""`

	ScopeFile string `envconfig:"SCOPE_FILE" default:"config/scope.yaml"`

	// Audit trail
	LogDir             string `envconfig:"LOG_DIR" default:"log"`
	DatabasePath       string `envconfig:"DATABASE_PATH" default:"log/rsamanager.db"`
	AuditRetentionDays int    `envconfig:"AUDIT_RETENTION_DAYS" default:"365"`

	// Cron expression used by the schedule command.
	Schedule string `envconfig:"SCHEDULE" default:""`
}

var Cfg Settings

func Load() {
	s, err := Process()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	Cfg = s
}

// Process reads the RSAMANAGER_* environment into a Settings value, expands
// home-relative paths and validates it.
func Process() (Settings, error) {
	var s Settings
	if err := envconfig.Process("RSAMANAGER", &s); err != nil {
		return Settings{}, err
	}

	for _, p := range []*string{&s.VaultDir, &s.SSHConfigPath, &s.AnsibleInventory, &s.AnsiblePlaybookDir, &s.ScratchDir, &s.ScopeFile, &s.LogDir, &s.DatabasePath} {
		expanded, err := ExpandHome(*p)
		if err != nil {
			return Settings{}, err
		}
		*p = expanded
	}

	if s.MaxAttempts < 1 {
		return Settings{}, fmt.Errorf("RSAMANAGER_MAX_ATTEMPTS must be at least 1, got %d", s.MaxAttempts)
	}
	if s.DefaultUser == "" {
		return Settings{}, fmt.Errorf("RSAMANAGER_DEFAULT_USER must not be empty")
	}
	return s, nil
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
