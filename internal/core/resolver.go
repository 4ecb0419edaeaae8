package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// InputResolver resolves declared input paths to a deterministic InputSet.
//
// Inputs are identified by content: each file is streamed through sha256 so
// large rasters are never held in memory. Paths are sorted and deduplicated,
// so declaration order never affects the task hash.
type InputResolver struct {
	// BaseDir is used to resolve relative paths.
	BaseDir string
}

// NewInputResolver creates a new InputResolver with the given base directory.
func NewInputResolver(baseDir string) *InputResolver {
	return &InputResolver{BaseDir: baseDir}
}

// Resolve digests every path and returns the sorted InputSet.
//
// A missing input is an error: the scheduler only probes a task after all of
// its dependencies produced their targets.
func (r *InputResolver) Resolve(paths []string) (*InputSet, error) {
	if len(paths) == 0 {
		return &InputSet{Inputs: []Input{}}, nil
	}

	seen := make(map[string]struct{}, len(paths))
	normalized := make([]string, 0, len(paths))
	for _, p := range paths {
		n := r.normalize(p)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		normalized = append(normalized, n)
	}
	sort.Strings(normalized)

	inputs := make([]Input, 0, len(normalized))
	for _, p := range normalized {
		digest, err := DigestFile(filepath.FromSlash(p))
		if err != nil {
			return nil, fmt.Errorf("reading input %q: %w", p, err)
		}
		inputs = append(inputs, Input{Path: p, Digest: digest})
	}
	return &InputSet{Inputs: inputs}, nil
}

func (r *InputResolver) normalize(p string) string {
	full := p
	if !filepath.IsAbs(p) && r.BaseDir != "" {
		full = filepath.Join(r.BaseDir, p)
	}
	return filepath.ToSlash(filepath.Clean(full))
}

// DigestFile returns the hex sha256 of the file at path.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
