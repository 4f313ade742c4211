package core

// encoding.go decides whether file content is genuinely UTF-8.
//
// Spreadsheet tools commonly save CSV exports in the operator's locale code
// page (Windows-1252 on most Spanish-locale machines). Such files must be
// rejected before they reach the backend transform, which assumes UTF-8.

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// ValidateEncoding reports whether content survives a strict UTF-8 decode
// unchanged. It never panics; any decode failure yields false.
func ValidateEncoding(content []byte) bool {
	_, _, err := transform.Bytes(encoding.UTF8Validator, content)
	return err == nil
}

// Diagnosis describes why content failed ValidateEncoding.
type Diagnosis struct {
	Valid bool
	// Offset is the byte position of the first invalid sequence, -1 if valid.
	Offset int
	// LikelyCharset names the encoding the file was probably saved in, if known.
	LikelyCharset string
}

// DiagnoseEncoding inspects content for operator-facing hints. It does not
// change the accept/reject decision made by ValidateEncoding.
func DiagnoseEncoding(content []byte) Diagnosis {
	if ValidateEncoding(content) {
		return Diagnosis{Valid: true, Offset: -1}
	}

	d := Diagnosis{Offset: firstInvalid(content)}

	switch {
	case bytes.HasPrefix(content, bomUTF16LE), bytes.HasPrefix(content, bomUTF16BE):
		d.LikelyCharset = "UTF-16"
	case hasLatin1Controls(content):
		d.LikelyCharset = "ISO-8859-1"
	case decodesCleanly(charmap.Windows1252, content):
		d.LikelyCharset = "Windows-1252"
	}
	return d
}

// firstInvalid returns the offset of the first byte that does not start a
// valid UTF-8 sequence.
func firstInvalid(content []byte) int {
	for i := 0; i < len(content); {
		r, size := utf8.DecodeRune(content[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}

// decodesCleanly reports whether every byte of content maps to a defined
// character of the charmap.
func decodesCleanly(cm *charmap.Charmap, content []byte) bool {
	out, err := cm.NewDecoder().Bytes(content)
	if err != nil {
		return false
	}
	return !bytes.ContainsRune(out, utf8.RuneError)
}

// hasLatin1Controls reports whether content holds a byte that Windows-1252
// leaves undefined (0x81, 0x8D, 0x8F, 0x90, 0x9D). Such bytes are C1 controls
// in ISO-8859-1, so only a Latin-1 file can carry them.
func hasLatin1Controls(content []byte) bool {
	for _, b := range content {
		if b < 0x80 || b > 0x9F {
			continue
		}
		if r := charmap.Windows1252.DecodeByte(b); r == rune(b) || r == utf8.RuneError {
			return true
		}
	}
	return false
}
