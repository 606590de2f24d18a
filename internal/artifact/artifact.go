// Package artifact derives the scannable code for assets in custody and the
// printable document that wraps it. Derivation is pure: equal inputs give
// byte-identical output.
package artifact

import (
	"bytes"
	"fmt"
	"strings"

	"custody-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	idToken     = "{id}"
)

// Locator maps an asset id to the address the code points at.
type Locator interface {
	Locate(id uuid.UUID) string
}

type LocatorFunc func(id uuid.UUID) string

func (f LocatorFunc) Locate(id uuid.UUID) string { return f(id) }

// NewTemplateLocator substitutes the asset id for every "{id}" in template.
func NewTemplateLocator(template string) (Locator, error) {
	if !strings.Contains(template, idToken) {
		return nil, fmt.Errorf("locator template %q has no %s placeholder", template, idToken)
	}
	return LocatorFunc(func(id uuid.UUID) string {
		return strings.ReplaceAll(template, idToken, id.String())
	}), nil
}

// Code is the derived artifact: the encoded locator and its PNG rendering.
type Code struct {
	Content string
	PNG     []byte
}

type Deriver struct {
	Locator Locator
	Size    int
}

func NewDeriver(locator Locator, size int) *Deriver {
	if size <= 0 {
		size = DefaultSize
	}
	return &Deriver{Locator: locator, Size: size}
}

// Available reports whether an artifact exists for the asset.
func Available(asset *domain.Asset) bool {
	return asset != nil && asset.Status == domain.AssetStatusAssigned
}

// Derive renders the code. ok is false, with a nil error, for any asset that
// is not assigned. An error means the locator could not be encoded.
func (d *Deriver) Derive(asset *domain.Asset) (code Code, ok bool, err error) {
	if !Available(asset) {
		return Code{}, false, nil
	}
	content := d.Locator.Locate(asset.ID)
	png, err := qrcode.Encode(content, qrcode.Medium, d.Size)
	if err != nil {
		return Code{}, false, fmt.Errorf("encode qr for asset %s: %w", asset.ID, err)
	}
	return Code{Content: content, PNG: png}, true, nil
}

// DeriveDocument renders the printable document, gated like Derive.
func (d *Deriver) DeriveDocument(asset *domain.Asset) ([]byte, bool, error) {
	code, ok, err := d.Derive(asset)
	if err != nil || !ok {
		return nil, ok, err
	}
	var buf bytes.Buffer
	if err := Document(&buf, code, asset); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}
