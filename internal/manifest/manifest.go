// Package manifest loads the static description of study material: which
// video sets exist, which processing methods each set was rendered with, and
// which files belong to each method. The manifest is loaded once at startup,
// validated, and shared read-only by every request.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/preflab/pairwise/internal/study"
)

// Manifest maps set name -> method name -> ordered video file paths.
// Paths are relative to the static root the server serves them from.
type Manifest map[string]map[string][]string

// Load reads and validates a manifest JSON file.
func Load(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, study.NewConfigError(fmt.Sprintf("open manifest %s: %v", path, err))
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a manifest from r.
func Parse(r io.Reader) (Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, study.NewConfigError(fmt.Sprintf("decode manifest: %v", err))
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the structural invariants the planner relies on: at least
// one set, at least two methods per set, at least one video per method.
func (m Manifest) Validate() error {
	if len(m) == 0 {
		return study.NewConfigError("manifest must declare at least one set")
	}
	for set, methods := range m {
		if strings.TrimSpace(set) == "" {
			return study.NewConfigError("manifest contains a set with an empty name")
		}
		if len(methods) < 2 {
			return study.NewConfigError(fmt.Sprintf("set %q must declare at least 2 methods", set))
		}
		for method, vids := range methods {
			if strings.TrimSpace(method) == "" {
				return study.NewConfigError(fmt.Sprintf("set %q contains a method with an empty name", set))
			}
			if len(vids) == 0 {
				return study.NewConfigError(fmt.Sprintf("set %q method %q has no videos", set, method))
			}
			for _, v := range vids {
				if strings.TrimSpace(v) == "" {
					return study.NewConfigError(fmt.Sprintf("set %q method %q lists an empty video path", set, method))
				}
			}
		}
	}
	return nil
}

// CheckFiles verifies that every referenced video exists under staticDir.
// Optional at startup; useful before opening a study to participants.
func (m Manifest) CheckFiles(staticDir string) error {
	for set, methods := range m {
		for method, vids := range methods {
			for _, v := range vids {
				p := filepath.Join(staticDir, filepath.FromSlash(v))
				if st, err := os.Stat(p); err != nil || st.IsDir() {
					return study.NewConfigError(fmt.Sprintf("missing video for set %q method %q: %s", set, method, p))
				}
			}
		}
	}
	return nil
}

// SetNames returns the set names in sorted order. Planning iterates maps
// through this so plans stay deterministic for a given seed.
func (m Manifest) SetNames() []string {
	names := make([]string, 0, len(m))
	for set := range m {
		names = append(names, set)
	}
	sort.Strings(names)
	return names
}

// MethodNames returns the method names of a set in sorted order.
func (m Manifest) MethodNames(set string) []string {
	methods := m[set]
	names := make([]string, 0, len(methods))
	for method := range methods {
		names = append(names, method)
	}
	sort.Strings(names)
	return names
}
