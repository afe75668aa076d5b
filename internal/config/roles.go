package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/festival-ticketing/internal/identity"
)

// LoadDirectory returns the built-in role directory with the entries of
// the YAML file at path laid over it. An empty path returns the built-in
// directory unchanged. The file uses the keys of identity.Directory:
//
//	memberships:
//	  visited: 7d1c...
//	issuers:
//	  b2c: https://example.b2clogin.com/tenant/v2.0/
//	composites:
//	  school: [teacher, student]
//	class_parents:
//	  11r: 12c1...
func LoadDirectory(path string) (identity.Directory, error) {
	dir := identity.DefaultDirectory()
	if path == "" {
		return dir, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return dir, fmt.Errorf("read role directory: %w", err)
	}
	var overlay identity.Directory
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return dir, fmt.Errorf("parse role directory %s: %w", path, err)
	}
	for k, v := range overlay.Memberships {
		dir.Memberships[k] = v
	}
	for k, v := range overlay.Issuers {
		dir.Issuers[k] = v
	}
	for k, v := range overlay.Composites {
		dir.Composites[k] = v
	}
	for k, v := range overlay.ClassParents {
		dir.ClassParents[k] = v
	}
	return dir, nil
}
