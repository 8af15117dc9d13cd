// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package formats decides which input files the conversion engine accepts.
package formats

import (
	"path/filepath"
	"sort"
	"strings"
)

// supported is the set of lower-case extensions, with leading dot, that the
// engine can read: office documents, text and markup, images, and audio.
var supported = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".ppt":  true,
	".pptx": true,
	".xls":  true,
	".xlsx": true,
	".csv":  true,
	".md":   true,
	".txt":  true,
	".html": true,
	".htm":  true,
	".xml":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tiff": true,
	".bmp":  true,
	".gif":  true,
	".wav":  true,
	".mp3":  true,
	".aac":  true,
	".flac": true,
}

// Filter reports whether a path should be handed to the engine.
type Filter func(path string) bool

// Supported reports whether path has one of the built-in extensions.
// Matching is case-insensitive.
func Supported(path string) bool {
	return supported[strings.ToLower(filepath.Ext(path))]
}

// List returns the built-in extensions, sorted, without leading dots.
func List() []string {
	out := make([]string, 0, len(supported))
	for ext := range supported {
		out = append(out, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(out)
	return out
}

// WithExtra returns a Filter accepting the built-in set plus extra.
// Entries may be given with or without the leading dot.
func WithExtra(extra []string) Filter {
	if len(extra) == 0 {
		return Supported
	}
	more := make(map[string]bool, len(extra))
	for _, e := range extra {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		more[e] = true
	}
	return func(path string) bool {
		ext := strings.ToLower(filepath.Ext(path))
		return supported[ext] || more[ext]
	}
}
