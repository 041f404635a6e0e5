package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"bar-replay-lab/internal/domain"
)

// Fingerprint hashes a snapshot's file inventory for provenance tracking.
// The digest is SHA-256 over "name:size" pairs joined with "|", in the
// inventory's (sorted) order, so two snapshots with the same file names and
// sizes fingerprint identically.
func Fingerprint(files []domain.DataFile) string {
	parts := make([]string, 0, len(files))
	for _, f := range files {
		parts = append(parts, fmt.Sprintf("%s:%d", f.Name, f.Size))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// Describe builds the provenance record for a loaded snapshot.
func Describe(dir, format string, rows int) (*domain.DataRef, error) {
	files, err := DataFiles(dir, format)
	if err != nil {
		return nil, err
	}

	return &domain.DataRef{
		Path:        dir,
		Rows:        rows,
		Files:       files,
		Fingerprint: Fingerprint(files),
	}, nil
}
