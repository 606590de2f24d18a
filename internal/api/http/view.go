package http

import (
	"context"
	"time"

	"custody-backend/internal/artifact"
	"custody-backend/internal/domain"
	"custody-backend/internal/storage"
)

// AssetView is the external presentation of an asset.
type AssetView struct {
	ID           string             `json:"id"`
	AssetType    string             `json:"asset_type"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Status       domain.AssetStatus `json:"status"`
	Owner        *string            `json:"owner"`
	PendingUser  *string            `json:"pending_user"`
	LinkedAsset  *string            `json:"linked_asset,omitempty"`
	ActionType   domain.ActionType  `json:"action_type,omitempty"`
	RatingBefore *int               `json:"rating_before,omitempty"`
	RatingAfter  *int               `json:"rating_after,omitempty"`
	PhotoURL     string             `json:"photo_url,omitempty"`
	// QRURL is only present while the asset is assigned.
	QRURL     string    `json:"qr_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Version   int64     `json:"version"`
}

type viewBuilder struct {
	baseURL        string
	files          storage.Storage
	downloadExpiry time.Duration
}

func (b *viewBuilder) build(ctx context.Context, a *domain.Asset) (AssetView, error) {
	v := AssetView{
		ID:           a.ID.String(),
		AssetType:    a.AssetType,
		Title:        a.Title,
		Description:  a.Description,
		Status:       a.Status,
		Owner:        a.Owner,
		PendingUser:  a.Requester,
		ActionType:   a.ActionType,
		RatingBefore: a.RatingBefore,
		RatingAfter:  a.RatingAfter,
		CreatedAt:    a.CreatedAt,
		Version:      a.Version,
	}
	if a.LinkedAsset != nil {
		linked := a.LinkedAsset.String()
		v.LinkedAsset = &linked
	}
	if artifact.Available(a) {
		v.QRURL = b.baseURL + "/api/v1/assets/" + v.ID + "/qr"
	}
	if a.PhotoRef != "" && b.files != nil {
		url, err := b.files.DownloadURL(ctx, a.PhotoRef, b.downloadExpiry)
		if err != nil {
			return AssetView{}, err
		}
		v.PhotoURL = url
	}
	return v, nil
}

func (b *viewBuilder) buildAll(ctx context.Context, assets []domain.Asset) ([]AssetView, error) {
	views := make([]AssetView, 0, len(assets))
	for i := range assets {
		v, err := b.build(ctx, &assets[i])
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}
