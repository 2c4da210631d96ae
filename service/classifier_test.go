package service

import (
	"testing"

	"github.com/nixj9/construction-doc-processor/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		expected model.FileType
	}{
		{"plan.dwg", model.FileTypeDrawing},
		{"site.dxf", model.FileTypeDrawing},
		{"tower.rvt", model.FileTypeDrawing},
		{"model.ifc", model.FileTypeDrawing},
		{"schedule.pdf", model.FileTypeText},
		{"contract.doc", model.FileTypeText},
		{"contract.docx", model.FileTypeText},
		{"notes.txt", model.FileTypeText},
		{"PLAN.DWG", model.FileTypeDrawing},
		{"Notes.TxT", model.FileTypeText},
		{"archive.tar.pdf", model.FileTypeText},
		{"plan.dwg.bak", model.FileTypeUnknown},
		{"image.png", model.FileTypeUnknown},
		{"README", model.FileTypeUnknown},
		{"trailing.", model.FileTypeUnknown},
		{".dwg", model.FileTypeDrawing},
		{"", model.FileTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.name)
			if got != tt.expected {
				t.Errorf("Classify(%q) = %s, want %s", tt.name, got, tt.expected)
			}
			if again := Classify(tt.name); again != got {
				t.Errorf("Classify(%q) is not stable: %s then %s", tt.name, got, again)
			}
		})
	}
}

func TestClassifyCoversExtensionSets(t *testing.T) {
	for ext := range drawingExtensions {
		if got := Classify("file." + ext); got != model.FileTypeDrawing {
			t.Errorf("Expected .%s to be drawing, got %s", ext, got)
		}
	}
	for ext := range textExtensions {
		if got := Classify("file." + ext); got != model.FileTypeText {
			t.Errorf("Expected .%s to be text, got %s", ext, got)
		}
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"a.PDF":     "pdf",
		"a.b.c":     "c",
		"noext":     "",
		"trailing.": "",
	}
	for name, want := range tests {
		if got := Extension(name); got != want {
			t.Errorf("Extension(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestCheckExtensionSets(t *testing.T) {
	if err := CheckExtensionSets(); err != nil {
		t.Fatalf("Expected disjoint sets, got %v", err)
	}

	textExtensions["dwg"] = struct{}{}
	defer delete(textExtensions, "dwg")
	if err := CheckExtensionSets(); err == nil {
		t.Error("Expected error for overlapping sets")
	}
}

func TestSupportedExtensions(t *testing.T) {
	exts := SupportedExtensions()
	if len(exts[model.FileTypeDrawing]) != 4 || len(exts[model.FileTypeText]) != 4 {
		t.Errorf("Unexpected extension lists: %v", exts)
	}
	if exts[model.FileTypeText][0] != "doc" {
		t.Errorf("Expected sorted list, got %v", exts[model.FileTypeText])
	}
}
