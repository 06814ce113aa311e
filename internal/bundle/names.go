package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"regexp"
	"strconv"
	"strings"
)

var (
	hashToken = regexp.MustCompile(`\[(?:chunkhash|contenthash|hash)(?::(\d+))?\]`)
	extSuffix = regexp.MustCompile(`\.(?:js|css|\[ext\])$`)
)

// esbuildName translates an output name template into esbuild's template
// syntax. esbuild appends the extension itself and has a single [hash].
func esbuildName(template, fallback string) string {
	if template == "" {
		return fallback
	}
	name := extSuffix.ReplaceAllString(template, "")
	name = hashToken.ReplaceAllString(name, "[hash]")
	name = strings.ReplaceAll(name, "[path]", "[dir]/")
	name = strings.ReplaceAll(name, "//", "/")
	return name
}

// renderName expands a name template for one emitted file. Hash tokens
// are replaced by a prefix of the content's SHA-256, 20 characters when no
// length is given.
func renderName(template, name, ext string, content []byte) string {
	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	out := hashToken.ReplaceAllStringFunc(template, func(tok string) string {
		n := 20
		if m := hashToken.FindStringSubmatch(tok); m[1] != "" {
			if v, err := strconv.Atoi(m[1]); err == nil && v > 0 && v < len(digest) {
				n = v
			}
		}
		return digest[:n]
	})
	out = strings.ReplaceAll(out, "[name]", name)
	out = strings.ReplaceAll(out, "[ext]", strings.TrimPrefix(ext, "."))
	return out
}

// stem returns the base name of p without its extension.
func stem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
