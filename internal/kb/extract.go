package kb

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Paragraphs per logical page for formats without physical pages.
const paragraphsPerChunk = 5

// extractPages returns one text unit per physical page (PDF) or per
// paragraph group (DOCX, TXT). Extraction is deterministic for a given
// input. Units are indexed from 1 by the caller.
func extractPages(path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".docx":
		return extractDOCX(path)
	case ".txt":
		return extractTXT(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func extractPDF(path string) ([]string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()
	totalPages := reader.NumPage()
	var pages []string
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip problematic pages instead of failing entirely.
			continue
		}
		text = normalizeText(text)
		if text == "" {
			continue
		}
		pages = append(pages, text)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: pdf yielded no text", ErrNoText)
	}
	return pages, nil
}

// extractDOCX walks the WordprocessingML document part and groups paragraph
// text into fixed-size chunks.
func extractDOCX(path string) ([]string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer reader.Close()

	var docFile *zip.File
	for _, file := range reader.File {
		if file.Name == "word/document.xml" {
			docFile = file
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("%w: docx has no document part", ErrNoText)
	}
	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("read docx document: %w", err)
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(rc)
	if err != nil {
		return nil, fmt.Errorf("parse docx xml: %w", err)
	}
	pages := groupParagraphs(paragraphs, paragraphsPerChunk)
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: docx yielded no text", ErrNoText)
	}
	return pages, nil
}

// docxParagraphs streams the XML and collects the text runs of each w:p
// element.
func docxParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var paragraphs []string
	var current strings.Builder
	inParagraph := false
	inText := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch tok := token.(type) {
		case xml.StartElement:
			switch tok.Name.Local {
			case "p":
				inParagraph = true
				current.Reset()
			case "t":
				inText = inParagraph
			}
		case xml.EndElement:
			switch tok.Name.Local {
			case "p":
				if text := normalizeText(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				inParagraph = false
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(tok)
			}
		}
	}
	return paragraphs, nil
}

func extractTXT(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	var paragraphs []string
	for _, block := range strings.Split(text, "\n\n") {
		if block = normalizeText(block); block != "" {
			paragraphs = append(paragraphs, block)
		}
	}
	pages := groupParagraphs(paragraphs, paragraphsPerChunk)
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: file yielded no text", ErrNoText)
	}
	return pages, nil
}

func groupParagraphs(paragraphs []string, size int) []string {
	if size <= 0 {
		size = 1
	}
	var pages []string
	for start := 0; start < len(paragraphs); start += size {
		end := start + size
		if end > len(paragraphs) {
			end = len(paragraphs)
		}
		pages = append(pages, strings.Join(paragraphs[start:end], "\n\n"))
	}
	return pages
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	return strings.TrimSpace(text)
}

// supportedExtension reports whether ext (with dot) has an extractor.
func supportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".txt":
		return true
	}
	return false
}
