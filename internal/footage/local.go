package footage

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".mkv": {}, ".webm": {}, ".m4v": {},
}

// LocalClips probes the videos under dir. Files inside a subdirectory take the
// subdirectory name as their keyword; top-level files use their base name.
// Files that fail to probe are skipped.
func LocalClips(ctx context.Context, dir string, prober Prober) ([]Clip, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan clips: %w", err)
	}
	sort.Strings(paths)

	clips := make([]Clip, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := prober.Probe(ctx, path)
		if err != nil || info.DurationSeconds <= 0 {
			continue
		}
		rel, _ := filepath.Rel(dir, path)
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		keyword := stem
		if parent := filepath.Dir(rel); parent != "." {
			keyword = filepath.Base(parent)
		}
		clips = append(clips, Clip{
			ID:              "local_" + strings.ReplaceAll(strings.TrimSuffix(rel, filepath.Ext(rel)), string(filepath.Separator), "_"),
			Path:            path,
			Keyword:         keyword,
			Width:           info.Width,
			Height:          info.Height,
			DurationSeconds: info.DurationSeconds,
		})
	}
	return clips, nil
}
