// Package runid mints run identifiers that are sortable by start time and
// content-addressed by what the run consumed.
package runid

import (
	"crypto/sha256"
	"time"

	"github.com/mr-tron/base58"
)

// tagBytes is how much of the digest feeds the tag. Six bytes keep the tag
// short (8-9 base58 characters) while making collisions between different
// (config, data) pairs implausible within one output directory.
const tagBytes = 6

// New returns an identifier of the form YYYYMMDD_HHMMSS_<tag>. The prefix is
// the clock's UTC wall time; the tag is base58 over the first 6 bytes of
// SHA-256(config bytes ‖ data fingerprint), so two runs over the same config
// and snapshot carry the same tag and differ only in the timestamp.
func New(now time.Time, configBytes []byte, dataFingerprint string) string {
	return now.UTC().Format("20060102_150405") + "_" + Tag(configBytes, dataFingerprint)
}

// Tag returns just the content-addressed suffix of a run identifier.
func Tag(configBytes []byte, dataFingerprint string) string {
	h := sha256.New()
	h.Write(configBytes)
	h.Write([]byte(dataFingerprint))
	sum := h.Sum(nil)

	return base58.Encode(sum[:tagBytes])
}
