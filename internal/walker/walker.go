// Package walker collects the source units an audit run analyzes: it walks
// the configured tree, filters by extension and size, and decodes file
// contents to UTF-8. The analysis core never touches the filesystem itself.
package walker

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/leapstack-labs/crudmap/pkg/audit"
	"github.com/leapstack-labs/crudmap/pkg/crud"
)

// Options configures a collection pass.
type Options struct {
	// Root of the audited tree.
	Root string
	// Extensions filters files by suffix; empty accepts nothing.
	Extensions []string
	// MaxFileSize skips files larger than this many bytes; <=0 means no cap.
	MaxFileSize int64
	Logger      *slog.Logger
}

// Result is what the walk produced.
type Result struct {
	// Units in lexical path order, paths relative to Root.
	Units []audit.Unit
	// Skipped counts files passed over for size or encoding reasons.
	Skipped int
	// Diagnostics records every skipped or degraded unit.
	Diagnostics []crud.Diagnostic
}

// Collect walks the tree under opts.Root. Unreadable or undecodable files
// are skipped with a diagnostic; only a missing root is an error.
func Collect(opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source root %s: %w", opts.Root, err)
	}
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("source root %s: %w", opts.Root, err)
	}

	res := &Result{}
	sink := &crud.Sink{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if d != nil && d.IsDir() {
				sink.Warnf(relToRoot(root, path), "directory unreadable, subtree skipped: %v", walkErr)
				return fs.SkipDir
			}
			sink.Warnf(relToRoot(root, path), "file unreadable, skipped: %v", walkErr)
			res.Skipped++
			return nil
		}
		if d.IsDir() || !matchesExtension(d.Name(), opts.Extensions) {
			return nil
		}
		rel := relToRoot(root, path)

		if opts.MaxFileSize > 0 {
			if info, err := d.Info(); err == nil && info.Size() > opts.MaxFileSize {
				sink.Warnf(rel, "file exceeds size cap (%d bytes > %d), skipped", info.Size(), opts.MaxFileSize)
				res.Skipped++
				return nil
			}
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			sink.Warnf(rel, "file unreadable, skipped: %v", err)
			res.Skipped++
			return nil
		}
		text, ok := decode(raw)
		if !ok {
			sink.Warnf(rel, "binary or undecodable content, skipped")
			res.Skipped++
			return nil
		}
		logger.Debug("collected unit", "path", rel, "bytes", len(text))
		res.Units = append(res.Units, audit.Unit{Path: rel, Text: text})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", opts.Root, err)
	}
	res.Diagnostics = sink.All()
	return res, nil
}

// decode converts raw bytes to text. Valid UTF-8 passes through; anything
// else is treated as Latin-1, which the audited legacy trees are full of.
// Content with NUL bytes is considered binary.
func decode(raw []byte) (string, bool) {
	for _, b := range raw {
		if b == 0 {
			return "", false
		}
	}
	if utf8.Valid(raw) {
		return string(raw), true
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

func matchesExtension(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(strings.ToLower(name), strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

func relToRoot(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
