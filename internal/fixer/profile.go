package fixer

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/refinery/internal/quality"
	"github.com/dusk-indust/refinery/internal/skilldata"
)

// Profile holds the analysis instructions for one dimension.
type Profile struct {
	Dimension quality.Dimension `yaml:"dimension"`
	Title     string            `yaml:"title"`
	Focus     string            `yaml:"focus"`
	Checks    []string          `yaml:"checks"`
}

// LoadProfiles reads the profiles embedded in the binary.
func LoadProfiles() (map[quality.Dimension]Profile, error) {
	return LoadProfilesFS(skilldata.ProfileFS, skilldata.ProfileDir)
}

// LoadProfilesFS reads every .yml/.yaml file in dir and requires exactly one
// profile per known dimension.
func LoadProfilesFS(fsys fs.FS, dir string) (map[quality.Dimension]Profile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("fixer: read profiles: %w", err)
	}

	profiles := make(map[quality.Dimension]Profile, len(quality.Dimensions))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml")) {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("fixer: read profile %s: %w", name, err)
		}

		var p Profile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("fixer: parse profile %s: %w", name, err)
		}
		d, err := quality.ParseDimension(string(p.Dimension))
		if err != nil {
			return nil, fmt.Errorf("fixer: profile %s: %w", name, err)
		}
		p.Dimension = d
		if strings.TrimSpace(p.Focus) == "" {
			return nil, fmt.Errorf("fixer: profile %s: focus is empty", name)
		}
		if _, dup := profiles[d]; dup {
			return nil, fmt.Errorf("fixer: duplicate profile for %s", d)
		}
		profiles[d] = p
	}

	for _, d := range quality.Dimensions {
		if _, ok := profiles[d]; !ok {
			return nil, fmt.Errorf("fixer: no profile for %s", d)
		}
	}
	return profiles, nil
}
