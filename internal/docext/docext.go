// Package docext turns uploaded requirement documents (PDF/DOCX/TXT) into plain
// text. Extraction is deliberately dependency-free: PDFs get a best-effort scan of
// literal text operators with a printable-rune fallback, DOCX is unzipped and its
// document XML walked for paragraph and table text.
package docext

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// UnsupportedTypeError names the rejected extension so the API can echo it back.
type UnsupportedTypeError struct {
	Ext string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported file type: %s (expected pdf, docx, doc or txt)", e.Ext)
}

// Supported reports whether the extension (with or without dot) is extractable.
func Supported(ext string) bool {
	switch normalizeExt(ext) {
	case ".pdf", ".docx", ".doc", ".txt":
		return true
	default:
		return false
	}
}

// Extract dispatches on the filename extension and returns the document text.
func Extract(filename string, data []byte) (string, error) {
	ext := normalizeExt(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return extractPDF(data)
	case ".docx", ".doc":
		return extractDOCX(data)
	case ".txt":
		return strings.TrimSpace(strings.ToValidUTF8(string(data), "")), nil
	default:
		return "", &UnsupportedTypeError{Ext: ext}
	}
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// ---------------------------------------------------------------- PDF

// extractPDF reads literal show-text operators from uncompressed content
// streams; when a PDF keeps its text in compressed streams this finds nothing,
// so a printable-rune scan of the raw bytes serves as the fallback.
func extractPDF(data []byte) (string, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return "", fmt.Errorf("not a PDF document")
	}
	text := pdfLiteralStrings(data)
	if utf8.RuneCountInString(text) < 32 {
		text = printableText(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return text, nil
}

// pdfLiteralStrings collects parenthesized strings followed by Tj/TJ/' operators.
func pdfLiteralStrings(data []byte) string {
	var out strings.Builder
	i := 0
	for i < len(data) {
		if data[i] != '(' {
			i++
			continue
		}
		literal, next, ok := pdfLiteral(data, i)
		if !ok {
			i++
			continue
		}
		if pdfShowTextFollows(data, next) {
			out.WriteString(literal)
			out.WriteByte(' ')
		}
		i = next
	}
	return out.String()
}

// pdfLiteral decodes one (...) literal starting at open, handling nesting and
// the \-escapes PDF allows inside string objects.
func pdfLiteral(data []byte, open int) (string, int, bool) {
	var b strings.Builder
	depth := 0
	for i := open; i < len(data); i++ {
		ch := data[i]
		switch ch {
		case '\\':
			if i+1 >= len(data) {
				return "", 0, false
			}
			i++
			switch data[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r', 'f', 'b':
				b.WriteByte(' ')
			default:
				b.WriteByte(data[i])
			}
		case '(':
			depth++
			if depth > 1 {
				b.WriteByte(ch)
			}
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1, true
			}
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}
	return "", 0, false
}

func pdfShowTextFollows(data []byte, pos int) bool {
	for pos < len(data) && (data[pos] == ' ' || data[pos] == '\r' || data[pos] == '\n' || data[pos] == ']') {
		pos++
	}
	if pos >= len(data) {
		return false
	}
	rest := data[pos:]
	return bytes.HasPrefix(rest, []byte("Tj")) ||
		bytes.HasPrefix(rest, []byte("TJ")) ||
		bytes.HasPrefix(rest, []byte("'"))
}

// printableText filters raw bytes down to printable UTF-8 with whitespace kept.
func printableText(in []byte) string {
	var out bytes.Buffer
	for len(in) > 0 {
		r, size := utf8.DecodeRune(in)
		if r == utf8.RuneError && size == 1 {
			if b := in[0]; b >= 0x20 && b < 0x7f {
				out.WriteByte(b)
			}
			in = in[1:]
			continue
		}
		in = in[size:]
		if r == '\n' || r == '\t' || (r >= 0x20 && r != 0x7f && r < 0xFFF0) {
			out.WriteRune(r)
		}
	}
	return out.String()
}

// ---------------------------------------------------------------- DOCX

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening docx archive failed: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("reading docx body failed: %w", err)
		}
		defer rc.Close()
		return walkDocumentXML(rc)
	}
	return "", fmt.Errorf("docx has no word/document.xml")
}

// walkDocumentXML emits paragraph text line by line; table cells within a row are
// joined with " | " to keep tabular estimates readable, matching the layout the
// knowledge base indexes.
func walkDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		out       strings.Builder
		paragraph strings.Builder
		row       []string
		inCell    bool
	)
	flushParagraph := func() {
		text := strings.TrimSpace(paragraph.String())
		paragraph.Reset()
		if text == "" {
			return
		}
		if inCell {
			row = append(row, text)
			return
		}
		out.WriteString(text)
		out.WriteString("\n")
	}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing docx xml failed: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "tc":
				inCell = true
			case "tab":
				paragraph.WriteByte('\t')
			case "br":
				paragraph.WriteByte('\n')
			}
		case xml.CharData:
			paragraph.Write([]byte(el))
		case xml.EndElement:
			switch el.Name.Local {
			case "p":
				flushParagraph()
			case "tc":
				flushParagraph()
				inCell = false
			case "tr":
				if len(row) > 0 {
					out.WriteString(strings.Join(row, " | "))
					out.WriteString("\n")
					row = nil
				}
			}
		}
	}
	flushParagraph()
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", fmt.Errorf("docx contains no extractable text")
	}
	return text, nil
}
