package images

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// ErrUnsupportedType indicates the uploaded file's content type is not on the
// allow-list. Validation happens before anything is written to disk.
var ErrUnsupportedType = errors.New("images: unsupported content type")

// DefaultMaxWidth is the maximum width of optimized cover images.
const DefaultMaxWidth = 500

const jpegQuality = 80

var mimeExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
}

// CleanupReporter receives failures of best-effort file deletions. Cleanup
// failures never propagate to the caller.
type CleanupReporter interface {
	CleanupFailed(path string, err error)
}

// LogReporter reports cleanup failures to a standard logger.
type LogReporter struct {
	Logger *log.Logger
}

func (r LogReporter) CleanupFailed(path string, err error) {
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("images: cleanup of %s failed: %v", path, err)
}

// Pipeline converts uploaded cover images into width-bounded JPEG derivatives
// stored under a single directory.
type Pipeline struct {
	dir      string
	maxWidth int
	reporter CleanupReporter
}

// NewPipeline constructs a pipeline writing into dir. A nil reporter falls back
// to logging.
func NewPipeline(dir string, reporter CleanupReporter) *Pipeline {
	if reporter == nil {
		reporter = LogReporter{}
	}
	return &Pipeline{dir: dir, maxWidth: DefaultMaxWidth, reporter: reporter}
}

// Process stores the raw upload, writes a resized JPEG derivative next to it,
// removes the raw file and returns the derivative's filename. The raw file may
// remain on disk when the resize step fails.
func (p *Pipeline) Process(file io.Reader, originalName, contentType string) (string, error) {
	ext, ok := mimeExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	base := fmt.Sprintf("%s-%d-%s", sanitizeName(originalName), time.Now().UnixMilli(), uuid.NewString()[:8])
	rawName := base + ".orig." + ext
	rawPath := filepath.Join(p.dir, rawName)

	if err := writeFile(rawPath, file); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}

	img, err := imaging.Open(rawPath)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Dx() > p.maxWidth {
		img = imaging.Resize(img, p.maxWidth, 0, imaging.Lanczos)
	}

	derivedName := base + ".jpg"
	if err := imaging.Save(img, filepath.Join(p.dir, derivedName), imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	if err := os.Remove(rawPath); err != nil {
		p.reporter.CleanupFailed(rawPath, err)
	}

	return derivedName, nil
}

// Remove deletes a stored derivative by filename, best effort. Filenames with
// path separators are ignored outright.
func (p *Pipeline) Remove(filename string) {
	if filename == "" || strings.ContainsAny(filename, `/\`) {
		return
	}
	path := filepath.Join(p.dir, filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.reporter.CleanupFailed(path, err)
	}
}

func writeFile(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// sanitizeName reduces an uploaded filename to a safe base: path stripped,
// extension dropped, spaces replaced and anything outside [a-zA-Z0-9_-] removed.
func sanitizeName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ReplaceAll(base, " ", "_")

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}
