// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package blob

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

// URLPrefix is the public path images are served under and the prefix of
// every stored image path.
const URLPrefix = "uploads/"

var (
	ErrNotDataURI      = errors.New("image is not a base64 data URI")
	ErrUnsupportedType = errors.New("image type not allowed")
	ErrTooLarge        = errors.New("image too large")
	ErrInvalidImage    = errors.New("image could not be decoded")
)

var dataURIPattern = regexp.MustCompile(`^data:image/([a-zA-Z0-9]+);base64,`)

// extensions maps allowed formats, as declared or as sniffed by
// image.DecodeConfig, to file extensions.
var extensions = map[string]string{
	"jpeg": "jpg",
	"jpg":  "jpg",
	"png":  "png",
	"gif":  "gif",
	"webp": "webp",
}

// Image is a decoded and verified upload
type Image struct {
	Data   []byte
	Ext    string
	Width  int
	Height int
}

// Store keeps option images as flat files in one directory
type Store struct {
	dir     string
	maxSize int64
}

func New(dir string, maxSize int64) *Store {
	return &Store{dir: dir, maxSize: maxSize}
}

// Dir returns the directory files are written to
func (s *Store) Dir() string {
	return s.dir
}

// Decode parses a data:image/<type>;base64,... payload and checks that it
// is an allowed type, within the size limit, and a real image.
func (s *Store) Decode(dataURI string) (Image, error) {
	m := dataURIPattern.FindStringSubmatch(dataURI)
	if m == nil {
		return Image{}, ErrNotDataURI
	}
	declared := strings.ToLower(m[1])
	if _, ok := extensions[declared]; !ok {
		return Image{}, fmt.Errorf("%w: %s", ErrUnsupportedType, declared)
	}

	payload := dataURI[len(m[0]):]
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > s.maxSize+2 {
		return Image{}, fmt.Errorf("%w: limit is %s", ErrTooLarge, humanize.IBytes(uint64(s.maxSize)))
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(data) == 0 {
		return Image{}, ErrInvalidImage
	}
	if int64(len(data)) > s.maxSize {
		return Image{}, fmt.Errorf("%w: %s exceeds %s", ErrTooLarge,
			humanize.IBytes(uint64(len(data))), humanize.IBytes(uint64(s.maxSize)))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	ext, ok := extensions[format]
	if !ok {
		return Image{}, fmt.Errorf("%w: %s", ErrUnsupportedType, format)
	}

	return Image{Data: data, Ext: ext, Width: cfg.Width, Height: cfg.Height}, nil
}

// Save decodes the payload and writes it under a random name. The returned
// path is relative ("uploads/<uuid>.<ext>") and is what gets stored.
func (s *Store) Save(dataURI string) (string, error) {
	img, err := s.Decode(dataURI)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	name := uuid.NewString() + "." + img.Ext
	if err := os.WriteFile(filepath.Join(s.dir, name), img.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	slog.Debug("image stored",
		"name", name,
		"size", humanize.IBytes(uint64(len(img.Data))),
		"width", img.Width,
		"height", img.Height,
	)
	return URLPrefix + name, nil
}

// Delete removes a stored image. Missing files are not an error.
func (s *Store) Delete(stored string) error {
	name := path.Base(filepath.ToSlash(stored))
	if name == "." || name == "/" || name == ".." {
		return fmt.Errorf("invalid image path %q", stored)
	}

	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
