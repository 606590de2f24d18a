package artifact

import (
	"bytes"
	"fmt"
	"io"

	"custody-backend/internal/domain"

	"github.com/go-pdf/fpdf"
)

// Placement of the code on an A4 page, in points from the top-left corner.
const (
	docImageX    = 100.0
	docImageY    = 142.0
	docImageSide = 200.0
)

// Document writes a one-page PDF holding the code image and its locator as a
// caption. Dates are pinned to the asset's creation time so that output is
// stable for equal inputs.
func Document(w io.Writer, code Code, asset *domain.Asset) error {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCreationDate(asset.CreatedAt)
	pdf.SetModificationDate(asset.CreatedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(asset.Title, true)
	pdf.AddPage()

	name := "qr-" + asset.ID.String()
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(code.PNG))
	pdf.ImageOptions(name, docImageX, docImageY, docImageSide, docImageSide, false, opts, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(docImageX, docImageY+docImageSide+16, code.Content)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render document for asset %s: %w", asset.ID, err)
	}
	return nil
}
