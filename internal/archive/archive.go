package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
)

// StatementsFolder is the per-branch folder holding one directory per administrator.
const StatementsFolder = "Extratos de Cota Capital"

// ErrFolderNotFound is returned when the folder to compress does not exist.
var ErrFolderNotFound = errors.New("archive: folder not found")

// ZipFolder compresses every file under src into dst with paths relative to src.
// When deleteOriginal is set, src is removed after the archive is written.
func ZipFolder(src, dst string, deleteOriginal bool) error {
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrFolderNotFound, src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := writeZip(src, dst); err != nil {
		_ = os.Remove(dst)
		return err
	}
	if deleteOriginal {
		if err := os.RemoveAll(src); err != nil {
			return fmt.Errorf("archive: delete %s: %w", src, err)
		}
	}
	return nil
}

// ZipAll writes {base}/{D}/Extratos de Cota Capital/{A}.zip for every administrator folder A
// of every branch folder D. Unreadable folders are skipped. Returns the archive paths.
func ZipAll(base string, deleteOriginal bool) ([]string, error) {
	var archives []string
	for _, branch := range listFolders(base) {
		parent := filepath.Join(base, branch, StatementsFolder)
		for _, adm := range listFolders(parent) {
			src := filepath.Join(parent, adm)
			dst := filepath.Join(parent, adm+".zip")
			if err := ZipFolder(src, dst, deleteOriginal); err != nil {
				return archives, err
			}
			archives = append(archives, dst)
		}
	}
	return archives, nil
}

func writeZip(src, dst string) error {
	file, err := os.Create(dst)
	if err != nil {
		return err
	}
	zipWriter := zip.NewWriter(file)

	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		return addFile(zipWriter, path, filepath.ToSlash(rel))
	})
	closeErr := zipWriter.Close()
	fileErr := file.Close()
	if walkErr != nil {
		return walkErr
	}
	if closeErr != nil {
		return closeErr
	}
	return fileErr
}

func addFile(w *zip.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate
	fw, err := w.CreateHeader(header)
	if err != nil {
		return err
	}
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(fw, in)
	return err
}

func listFolders(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

// Archiver compresses the administrator folders of a render output tree.
type Archiver struct {
	logger zerolog.Logger
}

// NewArchiver constructs an Archiver.
func NewArchiver(logger zerolog.Logger) *Archiver {
	return &Archiver{logger: logger}
}

// ZipAll runs ZipAll on base and logs every archive written.
func (a *Archiver) ZipAll(base string, deleteOriginal bool) ([]string, error) {
	archives, err := ZipAll(base, deleteOriginal)
	for _, path := range archives {
		a.logger.Info().Str("archive", path).Bool("delete_original", deleteOriginal).Msg("folder archived")
	}
	if err != nil {
		a.logger.Error().Err(err).Msg("archiving failed")
		return archives, err
	}
	return archives, nil
}
