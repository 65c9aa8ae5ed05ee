package constants

import "strings"

// FileClass is how the pipeline routes a staged attachment.
type FileClass string

const (
	FileClassTextPDF     FileClass = "PDF_TEXT"    // text layer present, extracted directly
	FileClassScannedPDF  FileClass = "PDF_SCANNED" // no text layer, needs OCR
	FileClassImage       FileClass = "IMAGE"
	FileClassUnsupported FileClass = "UNSUPPORTED"
)

// NeedsOCR reports whether files of this class go to the OCR collaborator.
func (c FileClass) NeedsOCR() bool {
	return c == FileClassScannedPDF || c == FileClassImage
}

// ImageExtensions are rasters the OCR collaborator accepts as-is.
var ImageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsPDFExt reports whether ext (with or without dot) is a PDF.
func IsPDFExt(ext string) bool {
	return NormalizeExt(ext) == "pdf"
}

// IsImageExt reports whether ext (with or without dot) is a supported raster.
func IsImageExt(ext string) bool {
	_, ok := ImageExtensions[NormalizeExt(ext)]
	return ok
}
