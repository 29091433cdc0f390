// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads session credentials from a directory of plain-text
// files. Each file in the directory represents one secret: the filename is
// the key name and the file contents (trimmed) are the value.
//
// The bulletin sites answer plain clients with a challenge page. A cookie and
// user agent copied from a browser session that passed the challenge let the
// HTTP fetcher through; they live in the cookie and user-agent files.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Key files read by the fetchers.
const (
	Cookie    = "cookie"
	UserAgent = "user-agent"
)

// Credentials are the request headers replayed from a browser session.
type Credentials struct {
	Cookie    string
	UserAgent string
}

// FromMap picks the credentials out of a loaded secrets map.
func FromMap(m map[string]string) Credentials {
	return Credentials{Cookie: m[Cookie], UserAgent: m[UserAgent]}
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning on stderr but do not abort.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, eris.Wrapf(err, "reading secrets directory %s", dir)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}
