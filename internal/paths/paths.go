// Package paths decides which files are processed and where their output goes.
package paths

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jzx17/imgqueue/pkg/types"
)

// DefaultExtensions are the image extensions processed when none are configured
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif", ".gif"}

// ExtensionFilter accepts files whose extension is in an allow-list, ignoring case
type ExtensionFilter struct {
	allowed map[string]struct{}
}

// NewExtensionFilter builds a filter. Entries may omit the leading dot; an
// empty list means DefaultExtensions.
func NewExtensionFilter(exts []string) *ExtensionFilter {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	f := &ExtensionFilter{allowed: make(map[string]struct{}, len(exts))}
	for _, ext := range exts {
		if ext = NormalizeExtension(ext); ext != "" {
			f.allowed[ext] = struct{}{}
		}
	}
	return f
}

// IsEligible implements types.Eligibility
func (f *ExtensionFilter) IsEligible(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	_, ok := f.allowed[ext]
	return ok
}

// Extensions returns the allow-list, sorted
func (f *ExtensionFilter) Extensions() []string {
	out := make([]string, 0, len(f.allowed))
	for ext := range f.allowed {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// NormalizeExtension lowercases ext and ensures a leading dot. Blank input
// yields "".
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Mapper mirrors a source tree under an output root
type Mapper struct {
	inputRoot  string
	outputRoot string
	mkdirAll   func(string, os.FileMode) error
}

// NewMapper creates a mapper from inputRoot to outputRoot. Both are cleaned
// and made absolute.
func NewMapper(inputRoot, outputRoot string) (*Mapper, error) {
	in, err := filepath.Abs(inputRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve input root: %w", err)
	}
	out, err := filepath.Abs(outputRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve output root: %w", err)
	}
	return &Mapper{inputRoot: in, outputRoot: out, mkdirAll: os.MkdirAll}, nil
}

// InputRoot returns the absolute input root
func (m *Mapper) InputRoot() string { return m.inputRoot }

// OutputRoot returns the absolute output root
func (m *Mapper) OutputRoot() string { return m.outputRoot }

// MapOutputPath implements types.PathMapper. The destination keeps the
// source's path relative to the input root, and its parent directories are
// created. Sources outside the input root are rejected.
func (m *Mapper) MapOutputPath(_ context.Context, source string) (string, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return "", types.NewItemError("map", source, types.ReasonMapping, err)
	}
	rel, err := filepath.Rel(m.inputRoot, abs)
	if err != nil {
		return "", types.NewItemError("map", source, types.ReasonMapping, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", types.NewItemError("map", source, types.ReasonMapping,
			errors.New("source is not inside the input root"))
	}

	dst := filepath.Join(m.outputRoot, rel)
	if err := m.mkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", types.NewItemError("map", source, types.ReasonMapping,
			fmt.Errorf("create output directory: %w", err))
	}
	return dst, nil
}

// NestedExclusion returns outputRoot when it lies strictly inside inputRoot,
// so a walk of the input can skip it. It returns "" otherwise.
func NestedExclusion(inputRoot, outputRoot string) string {
	in, err := filepath.Abs(inputRoot)
	if err != nil {
		return ""
	}
	out, err := filepath.Abs(outputRoot)
	if err != nil {
		return ""
	}
	if IsUnder(out, in) && out != in {
		return out
	}
	return ""
}

// IsUnder reports whether path equals base or lies below it
func IsUnder(path, base string) bool {
	path = filepath.Clean(path)
	base = filepath.Clean(base)
	if path == base {
		return true
	}
	sep := string(filepath.Separator)
	if strings.HasSuffix(base, sep) {
		return strings.HasPrefix(path, base)
	}
	return strings.HasPrefix(path, base+sep)
}
