package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scope maps a control node's hostname to the hosts whose keys it rotates.
//
//	control-01:
//	  - web-01.example.com
//	  - db-01.example.com
type Scope map[string][]string

// LoadScope reads the scope file and returns the hosts assigned to nodename,
// in file order with blanks and duplicates dropped.
func LoadScope(path, nodename string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scope file: %w", err)
	}

	var scope Scope
	if err := yaml.Unmarshal(data, &scope); err != nil {
		return nil, fmt.Errorf("parse scope file %s: %w", path, err)
	}

	entries, ok := scope[nodename]
	if !ok {
		return nil, fmt.Errorf("scope file %s has no entry for node %q", path, nodename)
	}

	seen := make(map[string]bool, len(entries))
	hosts := make([]string, 0, len(entries))
	for _, h := range entries {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		hosts = append(hosts, h)
	}
	return hosts, nil
}
