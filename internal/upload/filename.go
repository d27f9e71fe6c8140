package upload

import (
	"path"
	"strings"
)

// dangerousExtensions mirrors the longstanding upload blacklist: a
// filename containing any of these anywhere is rejected outright, even
// before the whitelist check.
var dangerousExtensions = []string{
	".php", ".exe", ".sh", ".bat", ".cmd", ".com", ".pif",
	".scr", ".vbs", ".js", ".jar", ".zip", ".rar", ".7z",
}

func hasDangerousExtension(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range dangerousExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

// declaredExtension extracts a lowercased extension from the filename.
func declaredExtension(filename string) string {
	return strings.ToLower(path.Ext(sanitizeFilename(filename)))
}

// sanitizeFilename strips everything that could escape the storage
// directory: path separators (both flavors), traversal sequences, NUL
// bytes and absolute prefixes. The result is a single plain name.
func sanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\x00", "")
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = path.Base(path.Clean("/" + filename))
	if filename == "/" || filename == "." || filename == ".." {
		return ""
	}

	var b strings.Builder
	b.Grow(len(filename))
	for _, r := range filename {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	// Collapse inner dots so only the extension separator survives.
	if i := strings.LastIndexByte(out, '.'); i > 0 {
		out = strings.ReplaceAll(out[:i], ".", "_") + out[i:]
	}
	if len(out) > 255 {
		out = out[len(out)-255:]
	}
	return out
}
