// Package gateway delivers outbound messages to the chat platform.
package gateway

import (
	"context"

	"storefront/internal/model"
)

// Gateway outbound messaging collaborator
type Gateway interface {
	// SendDirectMessage delivers text privately to a user
	SendDirectMessage(ctx context.Context, userID, text string) error

	// PostAnnouncement posts content with buttons to a channel
	PostAnnouncement(ctx context.Context, channelID, content string, buttons []model.Button) (model.MessageRef, error)

	// EditAnnouncement replaces content and buttons of a posted announcement; nil buttons removes them
	EditAnnouncement(ctx context.Context, ref model.MessageRef, content string, buttons []model.Button) error
}
