// Package ids implements the content-addressing scheme shared by the
// forward indexes, the lineage engine, and the query surface: a ContentId
// is a stable logical id plus a monotonic version, and its canonical
// persistent key is "<id>::v<version>".
package ids

import (
	"fmt"
	"strconv"
	"strings"
)

// versionSep separates the logical content id from its version in the
// canonical persistent key. No other encoding is permitted.
const versionSep = "::v"

// ContentId identifies one version of one piece of content.
type ContentId struct {
	ID      string
	Version uint64
}

// IsEmpty reports whether this is the zero-value ContentId used to mean
// "no parent".
func (c ContentId) IsEmpty() bool { return c.ID == "" }

// Key returns the canonical persistent key "<id>::v<version>", decimal,
// no leading zeros.
func (c ContentId) Key() string {
	return c.ID + versionSep + strconv.FormatUint(c.Version, 10)
}

// String renders the ContentId for logging and error messages.
func (c ContentId) String() string {
	if c.IsEmpty() {
		return "<none>"
	}
	return c.Key()
}

// Prefix returns the forward-iteration prefix "<id>::v" used by latest
// version resolution.
func Prefix(contentID string) string {
	return contentID + versionSep
}

// ParseKey splits a canonical persistent key back into a ContentId.
func ParseKey(key string) (ContentId, error) {
	idx := strings.Index(key, versionSep)
	if idx < 0 {
		return ContentId{}, fmt.Errorf("content key %q missing %q separator", key, versionSep)
	}
	id := key[:idx]
	versionStr := key[idx+len(versionSep):]
	version, err := strconv.ParseUint(versionStr, 10, 64)
	if err != nil {
		return ContentId{}, fmt.Errorf("content key %q has non-numeric version suffix: %w", key, err)
	}
	return ContentId{ID: id, Version: version}, nil
}

// ParseVersionSuffix parses the version suffix of a key known to start with
// prefix, returning ok=false if the suffix is not a valid unsigned decimal
// integer (e.g. it is not a content key at all, or carries a non-numeric
// tail — lexicographic ordering over these suffixes is never acceptable,
// only the parsed numeric value is).
func ParseVersionSuffix(key, prefix string) (version uint64, ok bool) {
	if !strings.HasPrefix(key, prefix) {
		return 0, false
	}
	suffix := key[len(prefix):]
	v, err := strconv.ParseUint(suffix, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
