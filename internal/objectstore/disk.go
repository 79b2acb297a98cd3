package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Disk keeps objects as files below a root directory. It has no bucket and
// produces no checksum.
type Disk struct {
	root    string
	baseURL string
}

// NewDisk creates the root directory if needed. baseURL prefixes the keys in
// URL, for example "http://localhost:8080/media".
func NewDisk(root, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Disk{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the directory objects are written below.
func (d *Disk) Root() string { return d.root }

func (d *Disk) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(d.root, filepath.FromSlash(clean)), nil
}

// Put writes r to the file for key. size is advisory; the returned Object
// carries the number of bytes actually written.
func (d *Disk) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return nil, fmt.Errorf("create object dir: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return nil, fmt.Errorf("create object: %w", err)
	}
	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(p)
		return nil, fmt.Errorf("write object: %w", err)
	}
	return &Object{Key: key, Size: written, ContentType: contentType}, nil
}

// Stat reports the size of the file for key. The content type is guessed from
// the extension.
func (d *Disk) Stat(ctx context.Context, key string) (*Object, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return &Object{
		Key:         key,
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(path.Ext(key)),
	}, nil
}

// Open returns the file for key for serving downloads.
func (d *Disk) Open(key string) (*os.File, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Delete removes the file for key. Missing files are not an error.
func (d *Disk) Delete(ctx context.Context, key string) error {
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// URL joins the base URL and key.
func (d *Disk) URL(key string) string {
	return d.baseURL + "/" + strings.TrimLeft(key, "/")
}
