package remediation

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// Ledger is the plain-text record of issued delegated-access tokens.
// One line per token: account/container, expiry, access URL.
type Ledger struct {
	w       io.Writer
	file    *os.File
	path    string
	entries int
}

// NewLedger writes entries to w.
func NewLedger(w io.Writer) *Ledger {
	return &Ledger{w: w}
}

// OpenLedger returns a ledger appending to the file at path. The file is
// created on the first Record, so runs that issue no token leave earlier
// entries and their still-valid URLs in place.
func OpenLedger(path string) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is empty")
	}
	return &Ledger{path: path}, nil
}

func (l *Ledger) open() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open ledger %s: %w", l.path, err)
	}
	// An existing file keeps its mode on open; the ledger holds bearer URLs.
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return fmt.Errorf("restrict ledger %s: %w", l.path, err)
	}
	l.file, l.w = f, f
	return nil
}

// Record appends one descriptor.
func (l *Ledger) Record(d models.AccessDescriptor) error {
	if l.w == nil {
		if err := l.open(); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(l.w, "%s/%s\texpires=%s\t%s\n",
		d.Account, d.Container, d.Expiry.UTC().Format(time.RFC3339), d.URL)
	if err != nil {
		return fmt.Errorf("write ledger entry %s/%s: %w", d.Account, d.Container, err)
	}
	l.entries++
	return nil
}

// Entries returns the number of descriptors recorded by this ledger.
func (l *Ledger) Entries() int { return l.entries }

// Path returns the file path, or "" for a writer-backed ledger.
func (l *Ledger) Path() string { return l.path }

// Close closes the underlying file, if one was opened.
func (l *Ledger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
