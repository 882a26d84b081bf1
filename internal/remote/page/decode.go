package page

import (
	"bytes"
	"io"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// Decode converts a raw body to UTF-8. Panels from the product line this
// drives predate UTF-8 defaults; ISO-8859-1 and Windows-1251 bodies are
// common, and an undeclared charset breaks name matching in listing scans.
func Decode(raw []byte, contentType string) string {
	if len(raw) == 0 {
		return ""
	}

	// Content-Type declaration wins when present
	if reader, err := charset.NewReader(bytes.NewReader(raw), contentType); err == nil {
		if decoded, err := io.ReadAll(reader); err == nil {
			return string(decoded)
		}
	}

	// Fall back to statistical detection
	if label := detectCharset(raw); label != "" && label != "utf-8" {
		if reader, err := charset.NewReaderLabel(label, bytes.NewReader(raw)); err == nil {
			if decoded, err := io.ReadAll(reader); err == nil {
				return string(decoded)
			}
		}
	}

	return string(raw)
}

// detectCharset detects the charset of raw bytes, empty on failure.
func detectCharset(raw []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(raw)
	if err != nil || result == nil {
		return ""
	}
	return strings.ToLower(result.Charset)
}
