package canvas

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	cerrors "github.com/conneroisu/tabcanvas/internal/errors"
	"github.com/conneroisu/tabcanvas/internal/validation"
)

// maxExternalSize caps the size of a local external file.
const maxExternalSize = 2 << 20

// FileFetcher serves external-file units from a local content root. Remote
// URLs are refused; their content must be supplied inline in the site file.
type FileFetcher struct {
	Root string
}

// Fetch implements renderer.Fetcher.
func (f FileFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if validation.IsWebURL(rawURL) {
		return "", cerrors.NewIOError("ERR_REMOTE_FETCH", "remote external files must be supplied inline", nil).
			WithContext("url", rawURL)
	}

	rel := rawURL
	if u, err := url.Parse(rawURL); err == nil && (u.Scheme == "file" || u.Scheme == "") {
		rel = u.Path
	}
	path, err := f.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := validation.ValidateFileExtension(path, []string{".md", ".markdown", ".html", ".htm"}); err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", cerrors.NewIOError("ERR_EXTERNAL_READ", "failed to open external file", err).
			WithContext("path", path)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxExternalSize+1))
	if err != nil {
		return "", cerrors.NewIOError("ERR_EXTERNAL_READ", "failed to read external file", err).
			WithContext("path", path)
	}
	if len(data) > maxExternalSize {
		return "", cerrors.NewIOError("ERR_EXTERNAL_SIZE", fmt.Sprintf("external file exceeds %d bytes", maxExternalSize), nil).
			WithContext("path", path)
	}
	return string(data), nil
}

func (f FileFetcher) resolve(rel string) (string, error) {
	root := f.Root
	if root == "" {
		root = "."
	}
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(rel, "/")))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", cerrors.NewSecurityError("ERR_PATH_TRAVERSAL", "external file escapes the content root").
			WithContext("path", rel)
	}
	return filepath.Join(root, clean), nil
}
