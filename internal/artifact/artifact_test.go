package artifact_test

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"custody-backend/internal/artifact"
	"custody-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assetIn(status domain.AssetStatus) *domain.Asset {
	a := &domain.Asset{
		ID:        uuid.MustParse("6f1c1c8e-3f0e-4b8a-9a51-2c1d7f3e9b10"),
		AssetType: "laptop",
		Title:     "ThinkPad",
		Status:    status,
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Version:   1,
	}
	switch status {
	case domain.AssetStatusAssigned:
		a.Owner = domain.StringPtr("u1")
	case domain.AssetStatusPending:
		a.Requester = domain.StringPtr("u1")
	}
	return a
}

func deriver(t *testing.T) *artifact.Deriver {
	t.Helper()
	locator, err := artifact.NewTemplateLocator("https://custody.example.com/assets/{id}/")
	require.NoError(t, err)
	return artifact.NewDeriver(locator, 0)
}

func TestNewTemplateLocator(t *testing.T) {
	locator, err := artifact.NewTemplateLocator("https://x.test/a/{id}?ref={id}")
	require.NoError(t, err)
	id := uuid.New()
	assert.Equal(t, "https://x.test/a/"+id.String()+"?ref="+id.String(), locator.Locate(id))

	_, err = artifact.NewTemplateLocator("https://x.test/a/")
	assert.Error(t, err)
}

func TestDerive_Gating(t *testing.T) {
	d := deriver(t)

	for _, status := range []domain.AssetStatus{domain.AssetStatusFree, domain.AssetStatusPending} {
		code, ok, err := d.Derive(assetIn(status))
		assert.NoError(t, err, status)
		assert.False(t, ok, status)
		assert.Empty(t, code.PNG)

		doc, ok, err := d.DeriveDocument(assetIn(status))
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, doc)
	}

	_, ok, err := d.Derive(nil)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDerive_Deterministic(t *testing.T) {
	d := deriver(t)
	a := assetIn(domain.AssetStatusAssigned)

	first, ok, err := d.Derive(a)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://custody.example.com/assets/"+a.ID.String()+"/", first.Content)

	second, ok, err := deriver(t).Derive(a.Clone())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.PNG, second.PNG)

	img, err := png.Decode(bytes.NewReader(first.PNG))
	require.NoError(t, err)
	assert.Equal(t, artifact.DefaultSize, img.Bounds().Dx())

	other := a.Clone()
	other.ID = uuid.New()
	third, _, err := d.Derive(other)
	require.NoError(t, err)
	assert.NotEqual(t, first.PNG, third.PNG)
}

func TestDerive_IgnoresMutableFields(t *testing.T) {
	d := deriver(t)
	a := assetIn(domain.AssetStatusAssigned)
	edited := a.Clone()
	edited.Title = "Renamed"
	edited.Owner = domain.StringPtr("u9")
	edited.Version = 7

	first, _, err := d.Derive(a)
	require.NoError(t, err)
	second, _, err := d.Derive(edited)
	require.NoError(t, err)
	assert.Equal(t, first.PNG, second.PNG)
}

func TestDeriveDocument(t *testing.T) {
	d := deriver(t)
	doc, ok, err := d.DeriveDocument(assetIn(domain.AssetStatusAssigned))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
	assert.True(t, bytes.Contains(doc, []byte("%%EOF")))

	t.Run("Identical across renders", func(t *testing.T) {
		if testing.Short() {
			t.Skip("waits for the wall clock to move")
		}
		// Document dates come from the asset, so a later render still matches.
		time.Sleep(1100 * time.Millisecond)
		again, ok, err := d.DeriveDocument(assetIn(domain.AssetStatusAssigned))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, doc, again)
	})

	_, ok, err = d.DeriveDocument(assetIn(domain.AssetStatusFree))
	require.NoError(t, err)
	assert.False(t, ok)
}
