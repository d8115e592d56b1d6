package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"imdirdiff/logging"
	"imdirdiff/types"
)

// IndexImages walks root and returns the set of allow-listed image paths
// relative to it. Entries that cannot be read are skipped; only an
// unreadable root is an error.
func IndexImages(root string, opts IndexOptions) (types.ImageSet, error) {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve root %s: %w", root, err)
	}
	if _, err := os.ReadDir(root); err != nil {
		return nil, fmt.Errorf("cannot read root %s: %w", root, err)
	}

	w := &walker{
		root:      root,
		exts:      newExtensionSet(opts.Extensions),
		follow:    opts.FollowSymlinks,
		set:       make(types.ImageSet),
		ancestors: map[string]bool{realRoot: true},
	}
	w.walkDir(root)

	logging.DebugLog("indexed root", "root", root, "images", w.stats.Images,
		"skipped", w.stats.Skipped, "ignored", w.stats.Ignored)

	return w.set, nil
}

type walker struct {
	root   string
	exts   extensionSet
	follow bool
	set    types.ImageSet
	stats  IndexStats
	// ancestors holds the resolved directories on the current descent, so a
	// link back up the tree is not followed forever
	ancestors map[string]bool
}

func (w *walker) walkDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.skip(dir, err)
		// ReadDir may still return the entries it read before failing
		if len(entries) == 0 {
			return
		}
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		mode := entry.Type()

		if mode&fs.ModeSymlink != 0 {
			if !w.follow {
				w.stats.Ignored++
				continue
			}
			info, err := os.Stat(path)
			if err != nil {
				w.skip(path, err)
				continue
			}
			mode = info.Mode().Type()
		}

		switch {
		case mode.IsDir():
			w.descend(path)
		case mode.IsRegular():
			w.addFile(path)
		default:
			w.stats.Ignored++
		}
	}
}

func (w *walker) descend(path string) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		w.skip(path, err)
		return
	}
	if w.ancestors[resolved] {
		logging.DebugLog("symlink cycle, not descending", "path", path, "target", resolved)
		return
	}

	w.ancestors[resolved] = true
	w.walkDir(path)
	delete(w.ancestors, resolved)
}

func (w *walker) addFile(path string) {
	if !w.exts.IsImageFile(path) {
		w.stats.Ignored++
		return
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		w.skip(path, err)
		return
	}

	w.set[types.ImagePath(rel)] = struct{}{}
	w.stats.Images++
}

func (w *walker) skip(path string, err error) {
	w.stats.Skipped++
	logging.DebugLog("skipping unreadable entry", "path", path, "error", err.Error())
}
