package manifest

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/preflab/pairwise/internal/study"
)

// Scan builds a manifest by walking videosDir, which must be laid out as
// <videosDir>/<set>/<method>/<video>.mp4. Recorded paths are prefixed with
// the directory's base name so they resolve under the server's static root
// (e.g. "videos/seaside/method_x/clip01.mp4").
func Scan(videosDir string) (Manifest, error) {
	abs, err := filepath.Abs(videosDir)
	if err != nil {
		return nil, study.NewConfigError(fmt.Sprintf("resolve %s: %v", videosDir, err))
	}
	root := filepath.Base(abs)

	m := Manifest{}
	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".mp4") {
			return nil
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 3 {
			return study.NewConfigError(fmt.Sprintf("unexpected layout for %s: want <set>/<method>/<video>.mp4", rel))
		}
		set, method := parts[0], parts[1]
		if m[set] == nil {
			m[set] = map[string][]string{}
		}
		m[set][method] = append(m[set][method], root+"/"+filepath.ToSlash(rel))
		return nil
	})
	if walkErr != nil {
		if _, ok := study.AsStudyError(walkErr); ok {
			return nil, walkErr
		}
		return nil, study.NewConfigError(fmt.Sprintf("scan %s: %v", videosDir, walkErr))
	}
	if len(m) == 0 {
		return nil, study.NewConfigError(fmt.Sprintf("no .mp4 files found under %s", videosDir))
	}
	for _, methods := range m {
		for _, vids := range methods {
			sort.Strings(vids)
		}
	}
	return m, nil
}
