// Package loader extracts indexable text from source files: PDFs
// page by page, spreadsheets sheet by sheet, text and code files in
// fixed line windows so answers can cite line ranges.
package loader

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"docqa/internal/models"
)

const linesPerSegment = 50

var codeExtensions = map[string]bool{
	".py": true, ".js": true, ".java": true, ".ts": true,
	".cpp": true, ".c": true, ".h": true, ".html": true,
	".css": true, ".json": true, ".yaml": true, ".yml": true,
	".sh": true, ".go": true,
}

// LoadInputs extracts documents from the given files and
// directories. Unreadable or unsupported files are collected as
// errors and skipped, never fatal.
func LoadInputs(paths []string) ([]models.Document, []error) {
	var docs []models.Document
	var errs []error

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("stat %s: %w", p, err))
			continue
		}
		if info.IsDir() {
			d, e := loadDir(p)
			docs = append(docs, d...)
			errs = append(errs, e...)
			continue
		}
		d, err := loadFile(p, filepath.Base(p))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, d...)
	}

	log.Info().Int("documents", len(docs)).Int("skipped", len(errs)).Msg("loaded document segments")
	return docs, errs
}

func loadDir(root string) ([]models.Document, []error) {
	var docs []models.Document
	var errs []error

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = name
		}
		loaded, loadErr := loadFile(path, rel)
		if loadErr != nil {
			errs = append(errs, loadErr)
			return nil
		}
		docs = append(docs, loaded...)
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return docs, errs
}

func loadFile(path, rel string) ([]models.Document, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case ext == ".pdf":
		return loadPDF(path, rel)
	case ext == ".docx":
		return loadDOCX(path, rel)
	case ext == ".xlsx" || ext == ".ods":
		return loadSheet(path, rel)
	case ext == ".md" || ext == ".markdown":
		return loadMarkdown(path, rel)
	case ext == ".txt":
		return loadTextOrCode(path, rel, "text")
	case codeExtensions[ext]:
		return loadTextOrCode(path, rel, "code")
	default:
		return nil, fmt.Errorf("unsupported file format: %s", path)
	}
}

func loadPDF(path, rel string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("read pdf %s: %w", rel, err)
	}

	var docs []models.Document
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Error().Err(err).Str("file", rel).Int("page", i).Msg("failed to extract pdf page")
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, models.Document{
			Text: text,
			Metadata: models.Metadata{
				DocID:     docID(rel, i, models.NoLocator),
				Filename:  rel,
				FileType:  "pdf",
				Page:      i,
				LineStart: models.NoLocator,
				LineEnd:   models.NoLocator,
			},
		})
	}
	return docs, nil
}

func loadDOCX(path, rel string) ([]models.Document, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	text := stripDocxTags(content)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []models.Document{{
		Text: text,
		Metadata: models.Metadata{
			DocID:     docID(rel, models.NoLocator, models.NoLocator),
			Filename:  rel,
			FileType:  "docx",
			Page:      models.NoLocator,
			LineStart: models.NoLocator,
			LineEnd:   models.NoLocator,
		},
	}}, nil
}

func loadSheet(path, rel string) ([]models.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []models.Document
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		fmt.Fprintf(&text, "Sheet: %s\n", sheetName)
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		if strings.TrimSpace(text.String()) == "" {
			continue
		}
		page := sheetNum + 1 // sheets stand in for pages
		docs = append(docs, models.Document{
			Text: text.String(),
			Metadata: models.Metadata{
				DocID:     docID(rel, page, models.NoLocator),
				Filename:  rel,
				FileType:  "spreadsheet",
				Page:      page,
				LineStart: models.NoLocator,
				LineEnd:   models.NoLocator,
			},
		})
	}
	return docs, nil
}

func loadMarkdown(path, rel string) ([]models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rendered, err := renderMarkdown(data)
	if err != nil {
		return nil, fmt.Errorf("render markdown %s: %w", rel, err)
	}
	if strings.TrimSpace(rendered) == "" {
		return nil, nil
	}
	return []models.Document{{
		Text: rendered,
		Metadata: models.Metadata{
			DocID:     docID(rel, models.NoLocator, models.NoLocator),
			Filename:  rel,
			FileType:  "markdown",
			Page:      models.NoLocator,
			LineStart: models.NoLocator,
			LineEnd:   models.NoLocator,
		},
	}}, nil
}

// loadTextOrCode splits the file into fixed-size line windows so a
// citation can point at a line range.
func loadTextOrCode(path, rel, fileType string) ([]models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.SplitAfter(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, nil
	}

	var docs []models.Document
	for i := 0; i < len(lines); i += linesPerSegment {
		end := i + linesPerSegment
		if end > len(lines) {
			end = len(lines)
		}
		text := strings.Join(lines[i:end], "")
		if strings.TrimSpace(text) == "" {
			continue
		}
		start := i + 1
		docs = append(docs, models.Document{
			Text: text,
			Metadata: models.Metadata{
				DocID:     docID(rel, models.NoLocator, start),
				Filename:  rel,
				FileType:  fileType,
				Page:      models.NoLocator,
				LineStart: start,
				LineEnd:   end,
			},
		})
	}
	return docs, nil
}

func renderMarkdown(src []byte) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	var buf bytes.Buffer
	if err := md.Convert(src, &buf); err != nil {
		return "", err
	}
	return strings.Trim(buf.String(), " \t\n\r"), nil
}

// stripDocxTags drops raw xml tags the docx reader leaves behind.
func stripDocxTags(content string) string {
	var b strings.Builder
	inTag := false
	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// docID is a stable hash of (filename, page, line_start):
// re-loading unchanged input yields identical ids.
func docID(filename string, page, lineStart int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%d_%d", filename, page, lineStart)))
	return hex.EncodeToString(sum[:])
}
