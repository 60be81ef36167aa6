package mimetable

import "strings"

// DefaultContentType is returned for extensions the table does not know.
const DefaultContentType = "application/octet-stream"

// Table maps a file extension (without the leading dot) to a content type.
// A Table is never mutated after New returns, so it is safe to share between
// concurrent requests.
type Table struct {
	entries  map[string]string
	fallback string
}

// Builtin returns the extensions served out of the box.
func Builtin() map[string]string {
	return map[string]string{
		"html": "text/html",
		"css":  "text/css",
		"js":   "application/javascript",
	}
}

// New creates a table from the built-in entries merged with extra.
// An empty fallback selects DefaultContentType.
func New(extra map[string]string, fallback string) *Table {
	entries := Builtin()
	for ext, contentType := range extra {
		ext = normalize(ext)
		if ext == "" || contentType == "" {
			continue
		}
		entries[ext] = contentType
	}

	if fallback == "" {
		fallback = DefaultContentType
	}

	return &Table{
		entries:  entries,
		fallback: fallback,
	}
}

// Lookup returns the content type for ext, or the table's fallback.
func (t *Table) Lookup(ext string) string {
	if contentType, ok := t.entries[normalize(ext)]; ok {
		return contentType
	}
	return t.fallback
}

// Len returns the number of known extensions
func (t *Table) Len() int {
	return len(t.entries)
}

func normalize(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
