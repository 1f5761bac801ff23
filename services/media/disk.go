// Package mediasvc stores uploaded files.
package mediasvc

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/update"
)

var (
	errOutsideRoot = errors.New("media path escapes the media directory")
	errForeignURL  = errors.New("url is not served by this media store")
)

// DiskStore keeps files under Media.Dir and serves them under Media.BaseURL.
type DiskStore struct {
	dir     string
	baseURL string
}

var _ update.MediaStore = (*DiskStore)(nil) // interface compliance check

func NewDiskStore(conf *core.Config) *DiskStore {
	return &DiskStore{
		dir:     conf.Media.Dir,
		baseURL: strings.TrimSuffix(conf.Media.BaseURL, "/"),
	}
}

// Dir is the directory the files live in.
func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) resolve(name string) (string, error) {
	name = path.Clean("/" + name)[1:]
	if name == "" {
		return "", errOutsideRoot
	}
	return filepath.Join(s.dir, filepath.FromSlash(name)), nil
}

// Save writes content to name, replacing any existing file, and returns its URL.
func (s *DiskStore) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", errors.Wrap(err, "creating media directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", errors.Wrap(err, "creating media file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err = io.Copy(tmp, content); err != nil {
		_ = tmp.Close()
		return "", errors.Wrap(err, "writing media file")
	}
	if err = tmp.Close(); err != nil {
		return "", errors.Wrap(err, "closing media file")
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return "", errors.Wrap(err, "moving media file")
	}
	return s.baseURL + "/" + path.Clean("/" + name)[1:], nil
}

// Delete removes the file served at url. Missing files are ignored.
func (s *DiskStore) Delete(ctx context.Context, url string) error {
	name := strings.TrimPrefix(url, s.baseURL+"/")
	if name == url {
		return errForeignURL
	}
	dst, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err = os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing media file")
	}
	return nil
}

// DetectContentType sniffs the MIME type of r from its first bytes and rewinds it.
func DetectContentType(r io.ReadSeeker) (string, error) {
	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return "", errors.Wrap(err, "detecting content type")
	}
	if _, err = r.Seek(0, io.SeekStart); err != nil {
		return "", errors.Wrap(err, "rewinding upload")
	}
	return mtype.String(), nil
}
