package kilncat

import (
	"fmt"
	"path"
	"strings"
	"unicode"
)

// PhotoBlobKey builds the predictable blob key for a photo:
// items/{itemID}/{photoID}{ext}. Orphan blobs left behind by failed
// operations stay under their item prefix, so a reconciliation sweep can
// find them without consulting metadata.
func PhotoBlobKey(itemID, photoID, fileName string) string {
	return "items/" + itemID + "/" + photoID + FileExt(fileName)
}

// FileExt returns the lowercased extension of fileName including the dot,
// or "" when there is none or it contains unsafe characters.
func FileExt(fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" || ext == "." {
		return ""
	}
	for _, r := range ext[1:] {
		if !unicode.IsLower(r) && !unicode.IsDigit(r) {
			return ""
		}
	}
	return ext
}

// IsValidBlobKey validates that a blob key is safe to hand to storage.
// It checks that the key:
//   - is not empty, ".", or "/"
//   - is relative (does not start with "/")
//   - does not end with "/"
//   - does not contain ".." (path traversal) or "//" (empty segments)
//   - does not contain invalid characters: \ ? # ~
//   - does not contain control characters or whitespace
func IsValidBlobKey(k string) bool {
	if k == "" || k == "/" || k == "." {
		return false
	}
	if k[0] == '/' || strings.HasSuffix(k, "/") {
		return false
	}
	if strings.Contains(k, "..") || strings.Contains(k, "//") {
		return false
	}
	if strings.ContainsAny(k, `\?#~`) {
		return false
	}
	if k == "/." || strings.Contains(k, "/./") || strings.HasSuffix(k, "/.") {
		return false
	}
	for _, r := range k {
		if r < 0x20 || r == 0x7f || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// TimezoneIdentifier extracts a display zone identifier from a timestamp:
// the zone name when it has one, otherwise a fixed offset like "+05:30".
// Returns "UTC" for zero-offset zones without a name.
func TimezoneIdentifier(name string, offsetSeconds int) string {
	if name != "" && name != "UTC" && !strings.ContainsAny(name, "+-") {
		return name
	}
	if offsetSeconds == 0 {
		return "UTC"
	}
	sign := "+"
	if offsetSeconds < 0 {
		sign = "-"
		offsetSeconds = -offsetSeconds
	}
	return fmt.Sprintf("%s%02d:%02d", sign, offsetSeconds/3600, (offsetSeconds%3600)/60)
}
