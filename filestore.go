package iris

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Filestore is the on-disk home for caller uploads: images under images/,
// document uploads under docs/.
type Filestore struct {
	root string
}

// NewFilestore creates the filestore layout under root if needed.
func NewFilestore(root string) (*Filestore, error) {
	for _, dir := range []string{"images", "docs"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, err
		}
	}
	return &Filestore{root: root}, nil
}

func (f *Filestore) Root() string { return f.root }

func (f *Filestore) ImagesDir() string { return filepath.Join(f.root, "images") }

// SaveImage writes data under images/ using the base of name, uniquified on
// collision, and returns the full path.
func (f *Filestore) SaveImage(name string, data []byte) (string, error) {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "upload"
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	path := filepath.Join(f.ImagesDir(), base)
	for i := 1; ; i++ {
		// O_EXCL claims the name atomically, so concurrent uploads with the
		// same filename can never overwrite each other.
		out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := out.Write(data)
			cerr := out.Close()
			if werr != nil {
				return "", werr
			}
			if cerr != nil {
				return "", cerr
			}
			return path, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
		path = filepath.Join(f.ImagesDir(), fmt.Sprintf("%s-%d%s", stem, i, ext))
	}
}

// List returns the paths of all stored files relative to the filestore root.
func (f *Filestore) List() ([]string, error) {
	var files []string

	err := filepath.Walk(f.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})

	return files, err
}

// ScanImages walks images/ for image files and returns their paths and
// modification times.
func (f *Filestore) ScanImages() ([]string, []time.Time, error) {
	var photos []string
	var mtimes []time.Time

	err := filepath.Walk(f.ImagesDir(), func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".jpg", ".jpeg", ".png", ".webp":
			photos = append(photos, path)
			mtimes = append(mtimes, info.ModTime())
		}

		return nil
	})

	return photos, mtimes, err
}
