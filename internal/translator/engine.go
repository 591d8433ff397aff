// Package translator holds the translation engine clients. The engine is a
// black box from content to content; everything here is transport.
package translator

import (
	"context"
	"errors"
)

// ErrTranslation wraps any engine-side failure. Callers treat it as a
// transient external failure and let the queue retry.
var ErrTranslation = errors.New("translator: translation failed")

// Engine is the collaborator contract consumed by the job processor.
type Engine interface {
	TranslateText(ctx context.Context, content, sourceLang, targetLang string) (string, error)
	TranslateDocument(ctx context.Context, data []byte, filename, sourceLang, targetLang, formality string) ([]byte, error)
}
