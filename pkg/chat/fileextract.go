package chat

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	log "github.com/sirupsen/logrus"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// ErrUnreadableFile signals that an attachment could not be turned into text:
// either a structured format failed to parse, or an unknown binary format
// failed both text decodings. Distinct from empty content.
var ErrUnreadableFile = errors.New("could not extract text from file")

// maxFileContextChars bounds extracted attachment text. Enforced after all
// format-specific extraction.
const maxFileContextChars = 15000

// ExtractFile converts an uploaded attachment into plain text, dispatching on
// the filename's extension. Files without an extension are treated as plain
// text.
func ExtractFile(data []byte, filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	log.WithFields(log.Fields{"file": filename, "type": ext}).Debug("extracting attachment")

	var text string
	var err error

	switch ext {
	case "xlsx":
		text, err = extractWorkbook(data)
	case "docx":
		text, err = extractWordDocument(data)
	case "pdf":
		text, err = extractPDF(data)
	case "txt", "csv", "":
		text, err = decodeText(data)
	case "html":
		text, err = decodeText(data)
		if err == nil {
			text = htmlToText(text)
		}
	default:
		// Unknown extension: last resort is treating it as text.
		text, err = decodeText(data)
	}
	if err != nil {
		return "", err
	}

	if runes := []rune(text); len(runes) > maxFileContextChars {
		text = string(runes[:maxFileContextChars]) +
			fmt.Sprintf("\n... [СОДЕРЖИМОЕ ФАЙЛА '%s' ОБРЕЗАНО] ...", filename)
	}

	return text, nil
}

// decodeText decodes bytes as UTF-8, falling back to windows-1251 for legacy
// regional exports.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}

	decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return "", ErrUnreadableFile
	}

	// The decoder substitutes U+FFFD for bytes with no windows-1251 mapping;
	// their presence means this was never text in either encoding.
	text := string(decoded)
	if strings.ContainsRune(text, utf8.RuneError) {
		return "", ErrUnreadableFile
	}

	return text, nil
}

// extractWorkbook renders every sheet of an xlsx workbook as a CSV table
// preceded by a sheet-name header, sheets separated by a blank line.
func extractWorkbook(data []byte) (string, error) {
	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", ErrUnreadableFile
	}
	defer workbook.Close()

	var sheets []string
	for _, name := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(name)
		if err != nil {
			return "", ErrUnreadableFile
		}

		var table strings.Builder
		writer := csv.NewWriter(&table)
		for _, row := range rows {
			if err := writer.Write(row); err != nil {
				return "", ErrUnreadableFile
			}
		}
		writer.Flush()

		sheets = append(sheets, fmt.Sprintf("--- Лист: %s ---\n%s", name, table.String()))
	}

	return strings.Join(sheets, "\n\n"), nil
}

var (
	paragraphEndRE = regexp.MustCompile(`</w:p>`)
	xmlTagRE       = regexp.MustCompile(`<[^>]+>`)
)

// extractWordDocument concatenates a docx file's paragraph text in document
// order.
func extractWordDocument(data []byte) (string, error) {
	reader, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", ErrUnreadableFile
	}
	defer reader.Close()

	content := reader.Editable().GetContent()

	// The document body is WordprocessingML: paragraph boundaries become
	// newlines, remaining tags are dropped, entities unescaped.
	content = paragraphEndRE.ReplaceAllString(content, "\n")
	content = xmlTagRE.ReplaceAllString(content, "")

	var paragraphs []string
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			paragraphs = append(paragraphs, html.UnescapeString(trimmed))
		}
	}

	return strings.Join(paragraphs, "\n"), nil
}

// extractPDF concatenates per-page text, pages separated by an explicit
// marker. A PDF yielding no text at all (scans, images) is unreadable.
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", ErrUnreadableFile
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return "", ErrUnreadableFile
	}

	return strings.Join(pages, "\n\n--- Новая страница ---\n\n"), nil
}
