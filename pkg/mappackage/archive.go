package mappackage

import (
	"archive/zip"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/mapaction/mapimport/pkg/constants"
	"github.com/mapaction/mapimport/pkg/errors"
	"github.com/mapaction/mapimport/pkg/logging"
)

// FilenameEncoding is the codepage every archive entry name is decoded with.
// The map production tool stores CP437 names and does not reliably set the
// UTF-8 flag, so the flag is ignored and nothing is autodetected.
var FilenameEncoding encoding.Encoding = charmap.CodePage437

// MetadataExtension marks an archive entry as a metadata candidate.
const MetadataExtension = ".xml"

const (
	uploadName = "upload.zip"
	contentDir = "content"
)

// ResourceFile is a payload file staged in a package's scratch directory.
type ResourceFile struct {
	Name string `json:"name" yaml:"name"` // original basename
	Path string `json:"path" yaml:"path"` // location on the package filesystem
	Size int64  `json:"size" yaml:"size"`
}

// Package is an extracted map package. It owns its scratch directory until
// Cleanup is called.
type Package struct {
	Dir          string
	Metadata     *Document
	MetadataName string
	Files        []ResourceFile

	fs afero.Fs
}

// Fs returns the filesystem the package is staged on.
func (p *Package) Fs() afero.Fs {
	return p.fs
}

// Open opens a staged resource file for reading.
func (p *Package) Open(file ResourceFile) (afero.File, error) {
	f, err := p.fs.Open(file.Path)
	if err != nil {
		return nil, errors.WrapIO("open", file.Path, err)
	}
	return f, nil
}

// Cleanup removes the scratch directory and everything in it.
func (p *Package) Cleanup() error {
	if p == nil || p.Dir == "" {
		return nil
	}
	if err := p.fs.RemoveAll(p.Dir); err != nil {
		return errors.WrapIO("remove", p.Dir, err)
	}
	return nil
}

// ToDataset parses the package metadata and carries the resource files
// through to the returned Info.
func (p *Package) ToDataset(ctx context.Context) (*Info, error) {
	info, err := ToDataset(ctx, p.Metadata)
	if err != nil {
		return nil, err
	}
	info.Files = append([]ResourceFile(nil), p.Files...)
	return info, nil
}

// Extractor unpacks untrusted map package archives.
type Extractor struct {
	options *options
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...Option) (*Extractor, error) {
	options, err := defaultOptions().apply(opts...)
	if err != nil {
		return nil, err
	}
	return &Extractor{options: options}, nil
}

// Extract stages the archive read from r in a fresh scratch directory and
// separates the metadata document from the payload files. The caller owns
// the returned Package and must call Cleanup. On error nothing is left on
// disk.
func (e *Extractor) Extract(ctx context.Context, r io.Reader) (pkg *Package, err error) {
	fs := e.options.fs
	logger := logging.FromContext(ctx)

	dir, err := afero.TempDir(fs, e.options.tempDir, constants.ScratchDirPrefix)
	if err != nil {
		return nil, errors.WrapIO("create scratch directory", e.options.tempDir, err)
	}
	defer func() {
		if err != nil {
			if rmErr := fs.RemoveAll(dir); rmErr != nil {
				logger.Warn().Err(rmErr).Str("dir", dir).Msg("Failed to remove scratch directory")
			}
		}
	}()

	archivePath, size, err := e.spool(dir, r)
	if err != nil {
		return nil, err
	}

	archive, err := fs.Open(archivePath)
	if err != nil {
		return nil, errors.WrapIO("open", archivePath, err)
	}
	defer func() { _ = archive.Close() }()

	// Entry names are checked by safeJoin after decoding.
	zr, err := zip.NewReader(archive, size)
	if err != nil && !stderrors.Is(err, zip.ErrInsecurePath) {
		return nil, errors.NewInvalidArchiveError("File is not a zip file", err)
	}
	if len(zr.File) > e.options.maxEntries {
		return nil, errors.NewInvalidArchiveError(
			fmt.Sprintf("Zip file has more than %d entries", e.options.maxEntries), nil)
	}

	root := filepath.Join(dir, contentDir)
	pkg = &Package{Dir: dir, fs: fs}
	var candidates []string

	for _, entry := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name, err := DecodeName(entry.Name)
		if err != nil {
			return nil, errors.NewInvalidArchiveError(fmt.Sprintf("Invalid file name '%s'", entry.Name), err)
		}
		if entry.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
			continue
		}

		target, err := safeJoin(root, name)
		if err != nil {
			return nil, err
		}

		n, err := e.materialize(entry, name, target)
		if err != nil {
			return nil, err
		}

		logger.Debug().Str("entry", name).Int64("size", n).Msg("Extracted archive entry")

		if strings.HasSuffix(name, MetadataExtension) {
			candidates = append(candidates, target)
			if pkg.MetadataName == "" {
				pkg.MetadataName = name
			}
			continue
		}
		pkg.Files = append(pkg.Files, ResourceFile{
			Name: path.Base(name),
			Path: target,
			Size: n,
		})
	}

	if len(candidates) == 0 {
		return nil, errors.NewMissingMetadataError()
	}
	if len(candidates) > 1 {
		logger.Debug().
			Int("candidates", len(candidates)).
			Str("metadata", pkg.MetadataName).
			Msg("Several metadata documents found, using the first")
	}

	doc, err := e.parse(candidates[0])
	if err != nil {
		return nil, err
	}
	pkg.Metadata = doc

	logger.Info().
		Str("dir", dir).
		Str("metadata", pkg.MetadataName).
		Int("files", len(pkg.Files)).
		Msg("Extracted map package")

	return pkg, nil
}

// DecodeName decodes a raw zip entry name with FilenameEncoding.
func DecodeName(raw string) (string, error) {
	name, err := FilenameEncoding.NewDecoder().String(raw)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(name, `\`, "/"), nil
}

// spool copies the upload into the scratch directory so the zip reader can
// seek in it.
func (e *Extractor) spool(dir string, r io.Reader) (string, int64, error) {
	fs := e.options.fs
	target := filepath.Join(dir, uploadName)

	out, err := fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePermissions)
	if err != nil {
		return "", 0, errors.WrapIO("create", target, err)
	}
	defer func() { _ = out.Close() }()

	n, err := io.Copy(out, io.LimitReader(r, e.options.maxArchiveSize+1))
	if err != nil {
		return "", 0, errors.WrapIO("write", target, err)
	}
	if n > e.options.maxArchiveSize {
		return "", 0, errors.NewInvalidArchiveError(
			fmt.Sprintf("Zip file is larger than %d bytes", e.options.maxArchiveSize), nil)
	}
	return target, n, nil
}

// materialize writes one entry to target and returns the number of bytes
// written.
func (e *Extractor) materialize(entry *zip.File, name, target string) (int64, error) {
	fs := e.options.fs
	limit := e.options.maxEntrySize

	if entry.UncompressedSize64 > uint64(limit) {
		return 0, errors.NewInvalidArchiveError(
			fmt.Sprintf("File '%s' is larger than %d bytes", name, limit), nil)
	}

	rc, err := entry.Open()
	if err != nil {
		return 0, errors.NewInvalidArchiveError(fmt.Sprintf("Unable to read '%s'", name), err)
	}
	defer func() { _ = rc.Close() }()

	if err := fs.MkdirAll(filepath.Dir(target), constants.DirPermissions); err != nil {
		return 0, errors.WrapIO("create directory", filepath.Dir(target), err)
	}
	out, err := fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePermissions)
	if err != nil {
		return 0, errors.WrapIO("create", target, err)
	}
	defer func() { _ = out.Close() }()

	src := &entryReader{r: io.LimitReader(rc, limit+1)}
	n, err := io.Copy(out, src)
	if src.err != nil {
		return 0, errors.NewInvalidArchiveError(fmt.Sprintf("Unable to read '%s'", name), src.err)
	}
	if err != nil {
		return 0, errors.WrapIO("write", target, err)
	}
	if n > limit {
		return 0, errors.NewInvalidArchiveError(
			fmt.Sprintf("File '%s' is larger than %d bytes", name, limit), nil)
	}
	return n, nil
}

func (e *Extractor) parse(target string) (*Document, error) {
	f, err := e.options.fs.Open(target)
	if err != nil {
		return nil, errors.WrapIO("open", target, err)
	}
	defer func() { _ = f.Close() }()
	return ParseDocument(f)
}

// entryReader remembers read errors so corrupt entries can be told apart
// from local write failures.
type entryReader struct {
	r   io.Reader
	err error
}

func (r *entryReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF {
		r.err = err
	}
	return n, err
}

// safeJoin resolves an archive entry name under root, refusing names that
// are absolute or climb out of it.
func safeJoin(root, name string) (string, error) {
	if path.IsAbs(name) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", errors.NewInvalidArchiveError(fmt.Sprintf("Unsafe file name '%s'", name), nil)
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.NewInvalidArchiveError(fmt.Sprintf("Unsafe file name '%s'", name), nil)
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}
