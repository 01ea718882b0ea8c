package acroform

import (
	"encoding/hex"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/unicode"
)

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// EncodeText returns a PDF text string object for s. ASCII values are written
// as-is; anything else as UTF-16BE with a byte order mark. Both use hex form
// so parentheses and backslashes need no escaping.
func EncodeText(s string) (types.Object, error) {
	raw := []byte(s)
	if !isASCII(s) {
		enc, err := utf16BE.NewEncoder().Bytes(raw)
		if err != nil {
			return nil, err
		}
		raw = enc
	}
	return types.HexLiteral(strings.ToUpper(hex.EncodeToString(raw))), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
