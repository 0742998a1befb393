package filesystem

import (
	"path"
	"sort"
)

// ListFiles expands path to the files below it. A directory contributes all of its
// descendant files but not itself. Anything else, including a missing path,
// contributes itself.
func ListFiles(fsys ReadFS, p string) ([]string, error) {
	info, err := fsys.Stat(p)
	if err != nil || !info.IsDir() {
		return []string{p}, nil
	}

	var files []string
	if walker, ok := fsys.(FileWalker); ok {
		err := walker.WalkFiles(p, func(f string) error {
			files = append(files, f)
			return nil
		})
		return files, err
	}

	err = walkDir(fsys, p, func(f string) error {
		files = append(files, f)
		return nil
	})
	sort.Strings(files)
	return files, err
}

// walkDir calls fn for every file below dir and stops at the first error.
func walkDir(fsys ReadFS, dir string, fn func(string) error) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		child := path.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := walkDir(fsys, child, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(child); err != nil {
			return err
		}
	}
	return nil
}
