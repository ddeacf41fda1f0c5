package kb

import (
	"errors"

	"marketbot/pkg/store"
)

var (
	// ErrFileMissing indicates the source file does not exist.
	ErrFileMissing = errors.New("file does not exist")
	// ErrFileEmpty indicates a zero-byte source file.
	ErrFileEmpty = errors.New("file is empty")
	// ErrUnsupportedFormat indicates an extension with no extractor.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrNoText indicates extraction produced no usable text.
	ErrNoText = errors.New("no text extracted")
	// ErrDocumentNotFound mirrors the store sentinel for missing ids.
	ErrDocumentNotFound = store.ErrDocumentNotFound
	// ErrVectorUnavailable indicates no embeddings provider is configured
	// or vector mode is disabled for this process.
	ErrVectorUnavailable = errors.New("vector search unavailable")
)
