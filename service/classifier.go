package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nixj9/construction-doc-processor/model"
)

var (
	drawingExtensions = map[string]struct{}{"dwg": {}, "dxf": {}, "rvt": {}, "ifc": {}}
	textExtensions    = map[string]struct{}{"pdf": {}, "doc": {}, "docx": {}, "txt": {}}
)

// Extension returns the lower-cased text after the last '.' in name, or ""
// when there is none.
func Extension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// Classify maps a file name to its FileType by extension.
func Classify(name string) model.FileType {
	ext := Extension(name)
	if ext == "" {
		return model.FileTypeUnknown
	}
	if _, ok := drawingExtensions[ext]; ok {
		return model.FileTypeDrawing
	}
	if _, ok := textExtensions[ext]; ok {
		return model.FileTypeText
	}
	return model.FileTypeUnknown
}

// CheckExtensionSets fails if an extension belongs to more than one type.
func CheckExtensionSets() error {
	for ext := range drawingExtensions {
		if _, ok := textExtensions[ext]; ok {
			return fmt.Errorf("extension %q is registered as both drawing and text", ext)
		}
	}
	return nil
}

// SupportedExtensions lists the accepted extensions per file type, sorted.
func SupportedExtensions() map[model.FileType][]string {
	return map[model.FileType][]string{
		model.FileTypeDrawing: sortedKeys(drawingExtensions),
		model.FileTypeText:    sortedKeys(textExtensions),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
