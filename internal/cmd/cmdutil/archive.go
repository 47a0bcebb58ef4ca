package cmdutil

import (
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/mapaction/mapimport/pkg/errors"
)

// Stdin is the archive argument that reads the archive from standard input.
const Stdin = "-"

// OpenArchive opens the archive named by path on fs, or stdin when path is
// "-". It returns the reader, a label for logs and results, and a close func.
func OpenArchive(fs afero.Fs, stdin io.Reader, path string) (io.Reader, string, func() error, error) {
	if path == Stdin {
		return stdin, "stdin", func() error { return nil }, nil
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, "", nil, errors.WrapIO("open", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, "", nil, errors.WrapIO("stat", path, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, "", nil, &errors.ValidationError{Field: errors.UploadField, Value: path, Message: "is a directory"}
	}

	return f, filepath.Base(path), f.Close, nil
}
