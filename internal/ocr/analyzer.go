package ocr

import "context"

// Document is a staged attachment handed to an analyzer. Key is the object
// store key; remote analyzers read the object themselves, local ones use Data.
type Document struct {
	Key  string
	Name string
	Data []byte
}

// Analyzer returns recognized text lines in reading order.
type Analyzer interface {
	Analyze(ctx context.Context, doc Document) ([]string, error)
}
