package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultCSVHeader is the header field of the catalog CSV.
const DefaultCSVHeader = "Nome do Produto"

// ErrSinkWrite wraps every failure to write the catalog output.
var ErrSinkWrite = errors.New("failed to write catalog")

// WriteCatalog writes header followed by one record per name to w.
// Fields are quoted only when needed and records end with CRLF.
func WriteCatalog(w io.Writer, header string, names []string) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write([]string{header}); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	for _, name := range names {
		if err := cw.Write([]string{name}); err != nil {
			return fmt.Errorf("%w: %w", ErrSinkWrite, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	return nil
}

// WriteCatalogFile writes the catalog to path, creating parent directories
// and truncating an existing file. A failure midway may leave a partial file.
func WriteCatalogFile(path, header string, names []string) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return fmt.Errorf("%w: %s: %w", ErrSinkWrite, path, mkErr)
		}
	}

	f, err := os.Create(path) //nolint:gosec // output path is chosen by the operator
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSinkWrite, path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %s: %w", ErrSinkWrite, path, cerr)
		}
	}()

	return WriteCatalog(f, header, names)
}
