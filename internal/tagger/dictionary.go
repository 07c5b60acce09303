package tagger

import (
	"context"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	minTokenLen = 2
	maxTokenLen = 30

	// Relative evidence strengths. Tokens repeated across the filename and
	// its ancestors accumulate weight, so a token seen twice always beats a
	// category inferred from the extension alone.
	tokenWeight    = 1.0
	keywordWeight  = 1.0
	categoryWeight = 0.5

	fallbackTag = "document"
)

// commonDirectories are ancestor names too generic to carry meaning.
var commonDirectories = map[string]struct{}{
	"documents": {}, "downloads": {}, "desktop": {}, "pictures": {},
	"music": {}, "videos": {}, "home": {}, "user": {}, "users": {},
	"tmp": {}, "temp": {}, "cache": {}, "data": {}, "files": {},
	"folder": {}, "folders": {}, "file": {}, "dir": {}, "directory": {},
	"src": {}, "lib": {}, "code": {}, "projects": {},
}

// keywordTags maps content and filename keywords to category tags.
var keywordTags = map[string]string{
	"todo":    "task",
	"meeting": "calendar",
	"code":    "programming",
	"bug":     "issue",
	"feature": "enhancement",
	"api":     "integration",
	"invoice": "financial",
	"receipt": "financial",
	"report":  "reporting",
	"notes":   "notes",
	"draft":   "draft",
}

// extensionCategories maps lowercased extensions to a broad category tag.
var extensionCategories = map[string]string{
	"pdf": "document", "doc": "document", "docx": "document",
	"jpg": "image", "jpeg": "image", "png": "image", "gif": "image",
	"webp": "image", "heic": "image",
	"mp4": "video", "avi": "video", "mov": "video", "mkv": "video",
	"mp3": "audio", "wav": "audio", "flac": "audio", "m4a": "audio",
	"zip": "archive", "tar": "archive", "gz": "archive", "rar": "archive",
	"7z":  "archive",
	"xls": "spreadsheet", "xlsx": "spreadsheet", "csv": "spreadsheet",
}

// Dictionary derives tags from the path alone plus keyword hits in the
// content sample. It needs no external service and never fails, which makes
// it the degradation target for the LLM provider.
type Dictionary struct {
	maxTags        int
	ancestorLimit  int
	contentSampleN int
}

// NewDictionary builds the dictionary provider. maxTags bounds the result
// size per file.
func NewDictionary(maxTags int) *Dictionary {
	return &Dictionary{maxTags: maxTags, ancestorLimit: 3, contentSampleN: 4096}
}

func (d *Dictionary) Name() string { return "dictionary" }

func (d *Dictionary) Tag(_ context.Context, path, content string) ([]Tag, error) {
	weights := make(map[string]float64)

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, token := range Tokenize(stem) {
		weights[token] += tokenWeight
	}

	dir := filepath.Dir(path)
	for depth := 0; depth < d.ancestorLimit; depth++ {
		name := filepath.Base(dir)
		if name == "/" || name == "." || name == "" {
			break
		}
		if _, common := commonDirectories[strings.ToLower(name)]; !common {
			for _, token := range Tokenize(name) {
				weights[token] += tokenWeight
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	sample := content
	if d.contentSampleN > 0 && len(sample) > d.contentSampleN {
		sample = sample[:d.contentSampleN]
	}
	haystack := strings.ToLower(sample) + " " + strings.ToLower(filepath.Base(path))
	for keyword, tag := range keywordTags {
		if strings.Contains(haystack, keyword) {
			weights[tag] += keywordWeight
		}
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if category, ok := extensionCategories[ext]; ok {
		weights[category] += categoryWeight
	}

	if len(weights) == 0 {
		weights[fallbackTag] = categoryWeight
	}

	tags := make([]Tag, 0, len(weights))
	for name, weight := range weights {
		tags = append(tags, Tag{Name: name, Weight: weight})
	}
	return SortAndTrim(tags, d.maxTags), nil
}

// Tokenize splits a path component into candidate tags: delimiter split,
// camelCase split, lowercased, bounded length.
func Tokenize(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '_' || r == '-' || r == '.'
	})

	var tokens []string
	for _, part := range parts {
		cleaned := cleanToken(part)
		if len(cleaned) < minTokenLen || len(cleaned) > maxTokenLen {
			continue
		}
		for _, piece := range splitCamelCase(cleaned) {
			if len(piece) >= minTokenLen {
				tokens = append(tokens, strings.ToLower(piece))
			}
		}
	}
	return tokens
}

func splitCamelCase(s string) []string {
	var parts []string
	var current strings.Builder
	for _, r := range s {
		if unicode.IsUpper(r) && current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteRune(unicode.ToLower(r))
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	if len(parts) == 0 {
		return []string{s}
	}
	return parts
}

func cleanToken(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
