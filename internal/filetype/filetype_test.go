package filetype

import "testing"

func TestLookup(t *testing.T) {
	tests := []struct {
		fileName   string
		known      bool
		ingestable bool
	}{
		{"report.pdf", true, true},
		{"REPORT.PDF", true, true},
		{"notes.docx", true, true},
		{"data.csv", true, true},
		{"readme.md", true, true},
		{"photo.jpg", true, false},
		{"archive.zip", true, false},
		{"malware.exe", false, false},
		{"no-extension", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		capability, known := Lookup(tt.fileName)
		if known != tt.known {
			t.Errorf("Lookup(%q) known = %v; want %v", tt.fileName, known, tt.known)
		}
		if known && capability.Ingestable != tt.ingestable {
			t.Errorf("Lookup(%q) ingestable = %v; want %v", tt.fileName, capability.Ingestable, tt.ingestable)
		}
		if got := IsIngestable(tt.fileName); got != tt.ingestable {
			t.Errorf("IsIngestable(%q) = %v; want %v", tt.fileName, got, tt.ingestable)
		}
	}
}

func TestDescription(t *testing.T) {
	if got := Description("report.pdf"); got != "PDF document" {
		t.Errorf("Description(report.pdf) = %q", got)
	}
	if got := Description("mystery.bin"); got != "Unknown format" {
		t.Errorf("Description(mystery.bin) = %q", got)
	}
}
