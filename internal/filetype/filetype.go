package filetype

import (
	"path/filepath"
	"strings"
)

// Capability is one row of the supported-format table: a human-readable
// description plus whether the ingestion pipeline can extract text from it.
type Capability struct {
	Description string
	Ingestable  bool
}

var capabilities = map[string]Capability{
	".pdf":  {Description: "PDF document", Ingestable: true},
	".docx": {Description: "Word document", Ingestable: true},
	".odt":  {Description: "OpenDocument text", Ingestable: true},
	".rtf":  {Description: "Rich text document", Ingestable: true},
	".txt":  {Description: "Plain text", Ingestable: true},
	".md":   {Description: "Markdown", Ingestable: true},
	".csv":  {Description: "Comma separated values", Ingestable: true},
	".json": {Description: "JSON data", Ingestable: true},
	".xml":  {Description: "XML data", Ingestable: true},
	".html": {Description: "HTML page", Ingestable: true},

	//accepted and merged, but the pipeline never parses them
	".png":  {Description: "PNG image", Ingestable: false},
	".jpg":  {Description: "JPEG image", Ingestable: false},
	".jpeg": {Description: "JPEG image", Ingestable: false},
	".zip":  {Description: "ZIP archive", Ingestable: false},
}

// Lookup resolves a file name to its capability row. Unknown extensions are
// not supported at all.
func Lookup(fileName string) (Capability, bool) {
	ext := strings.ToLower(filepath.Ext(fileName))
	capability, known := capabilities[ext]
	return capability, known
}

func IsIngestable(fileName string) bool {
	capability, known := Lookup(fileName)
	return known && capability.Ingestable
}

func Description(fileName string) string {
	capability, known := Lookup(fileName)
	if !known {
		return "Unknown format"
	}
	return capability.Description
}
