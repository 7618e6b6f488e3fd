package core

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SafeName reduces a display name to [A-Za-z0-9._-]. Spaces become
// underscores and accented letters lose their marks ("José Núñez" ->
// "Jose_Nunez"); everything else outside the allowed set is dropped.
func SafeName(name string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		name,
	)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	for _, r := range strings.TrimSpace(folded) {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CertificateFilename returns "<safe name>_certificate.<ext>", or
// "Certificate_<index+1>.<ext>" when nothing of the name survives.
func CertificateFilename(name string, index int, ext string) string {
	if safe := SafeName(name); safe != "" {
		return fmt.Sprintf("%s_certificate.%s", safe, ext)
	}
	return fmt.Sprintf("Certificate_%d.%s", index+1, ext)
}

// nameSet hands out unique filenames within one archive.
type nameSet map[string]int

// unique returns name, or name with a _2, _3... suffix before the extension
// if it was already handed out.
func (s nameSet) unique(name string) string {
	n := s[name]
	s[name] = n + 1
	if n == 0 {
		return name
	}

	stem, ext := name, ""
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		stem, ext = name[:i], name[i:]
	}
	for k := n + 1; ; k++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, k, ext)
		if _, taken := s[candidate]; !taken {
			s[candidate] = 1
			return candidate
		}
	}
}
