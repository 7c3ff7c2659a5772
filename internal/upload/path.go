package upload

import (
	"fmt"
	"path"
	"strings"
)

// UploadPath is the name the file gets inside the uploaded directory:
// the browser-relative path if known, then the filesystem path, then the
// bare name.
func (f File) UploadPath() string {
	for _, candidate := range []string{f.RelativePath, f.Path, f.Name} {
		if cleaned := cleanUploadPath(candidate); cleaned != "" {
			return cleaned
		}
	}
	return ""
}

// cleanUploadPath turns a client supplied path into a slash-separated path
// that cannot escape the uploaded root.
func cleanUploadPath(raw string) string {
	p := strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/")
	if p == "" {
		return ""
	}
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "." {
		return ""
	}
	return p
}

func fallbackUploadPath(index int) string { return fmt.Sprintf("file-%d", index+1) }
