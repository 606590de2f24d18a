package service

import (
	"context"
	"fmt"

	"custody-backend/internal/artifact"
	"custody-backend/internal/domain"
)

type notificationService struct {
	mailer  Mailer
	admins  []string
	locator artifact.Locator
}

// NewNotificationService mails the admin list. locator, when set, adds the
// asset's detail address to each message.
func NewNotificationService(mailer Mailer, admins []string, locator artifact.Locator) NotificationService {
	return &notificationService{mailer: mailer, admins: admins, locator: locator}
}

func (s *notificationService) NotifyPendingRequest(ctx context.Context, asset *domain.Asset, requester domain.Caller) error {
	if len(s.admins) == 0 {
		return nil
	}
	subject := fmt.Sprintf("Custody request: %s", asset.Title)
	body := fmt.Sprintf("Hello,\n\n%s has requested custody of %q (%s).\n\nPlease approve or deny the request.%s\n\nBest regards,\nAsset Custody",
		who(requester), asset.Title, asset.AssetType, s.link(asset))
	return s.mailer.Send(ctx, s.admins, subject, body)
}

func (s *notificationService) NotifyReturn(ctx context.Context, asset *domain.Asset, returnedBy domain.Caller) error {
	if len(s.admins) == 0 {
		return nil
	}
	subject := fmt.Sprintf("Asset returned: %s", asset.Title)
	body := fmt.Sprintf("Hello,\n\n%s has returned %q (%s). It is back in the free pool.", who(returnedBy), asset.Title, asset.AssetType)
	if asset.RatingBefore != nil && asset.RatingAfter != nil {
		body += fmt.Sprintf("\n\nCondition: %d before, %d after.", *asset.RatingBefore, *asset.RatingAfter)
	}
	body += s.link(asset) + "\n\nBest regards,\nAsset Custody"
	return s.mailer.Send(ctx, s.admins, subject, body)
}

func (s *notificationService) link(asset *domain.Asset) string {
	if s.locator == nil {
		return ""
	}
	return "\n\n" + s.locator.Locate(asset.ID)
}

func who(c domain.Caller) string {
	if c.Email != "" {
		return c.Email
	}
	return c.ID
}
