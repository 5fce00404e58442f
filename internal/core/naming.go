package core

import (
	"path/filepath"
	"strings"
	"unicode"
)

var archTokens = map[string]struct{}{
	"x86": {}, "x64": {}, "x86_64": {}, "x86-64": {}, "amd64": {},
	"arm": {}, "arm64": {}, "aarch64": {}, "armhf": {}, "armv7": {},
	"riscv64": {}, "ppc64le": {}, "s390x": {}, "i386": {}, "i686": {},
	"all": {}, "noarch": {},
}

// DeriveName extracts a display name from a package file name.
// Debian-style names (name_version_arch.deb) are cut at the first
// underscore; otherwise trailing version and architecture tokens are
// trimmed hyphen by hyphen.
func DeriveName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" {
		return filepath.Base(path)
	}

	// Debian convention: underscores separate name, version, architecture.
	if idx := strings.Index(base, "_"); idx > 0 {
		return base[:idx]
	}

	tokens := strings.Split(base, "-")
	for len(tokens) > 1 {
		last := strings.ToLower(strings.Trim(tokens[len(tokens)-1], " ._"))
		if !isTrimmableToken(last) {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}

	return strings.Join(tokens, "-")
}

func isTrimmableToken(token string) bool {
	if token == "" {
		return true
	}
	if _, ok := archTokens[token]; ok {
		return true
	}
	return isVersionToken(token)
}

// isVersionToken reports whether a token looks like a version number,
// e.g. "1.2.3", "v2.0" or "2.el9".
func isVersionToken(token string) bool {
	token = strings.TrimPrefix(token, "v")
	if token == "" {
		return false
	}
	hasDigit := false
	for _, r := range token {
		if unicode.IsDigit(r) {
			hasDigit = true
			continue
		}
		if r != '.' && !unicode.IsLetter(r) {
			return false
		}
	}
	if !hasDigit {
		return false
	}
	// Require the token to start with a digit so plain words survive.
	return unicode.IsDigit(rune(token[0]))
}
