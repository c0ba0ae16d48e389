// Package archive reads input zip archives and packs converted output.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/juju/errors"

	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
)

const ErrInvalidArchive = errors.ConstError("invalid zip archive")

// ReadFile loads every non-directory entry of the zip at path, in archive order.
func ReadFile(path string) ([]domain.ArchiveEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotatef(err, "open archive %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Annotatef(err, "stat archive %s", path)
	}
	return Read(f, info.Size())
}

func Read(r io.ReaderAt, size int64) ([]domain.ArchiveEntry, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	entries := make([]domain.ArchiveEntry, 0, len(zr.File))
	for _, file := range zr.File {
		if file.FileInfo().IsDir() {
			continue
		}
		content, err := readEntry(file)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidArchive, file.Name, err)
		}
		entries = append(entries, domain.ArchiveEntry{
			Name:    file.Name,
			Kind:    domain.KindFromName(file.Name),
			Content: content,
		})
	}
	return entries, nil
}

func readEntry(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Pack writes files into a new in-memory zip. Directories are implied by the
// entry names and never written explicitly.
func Pack(files []domain.ConvertedFile) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, file := range files {
		w, err := zw.Create(file.Name)
		if err != nil {
			return nil, errors.Annotatef(err, "create %s", file.Name)
		}
		if _, err := io.WriteString(w, file.SQL); err != nil {
			return nil, errors.Annotatef(err, "write %s", file.Name)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Annotate(err, "close output archive")
	}
	return buf.Bytes(), nil
}

// Codec adapts ReadFile and Pack to an injectable value.
type Codec struct{}

func (Codec) ReadFile(path string) ([]domain.ArchiveEntry, error) {
	return ReadFile(path)
}

func (Codec) Pack(files []domain.ConvertedFile) ([]byte, error) {
	return Pack(files)
}
