package gateway

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"storefront/internal/model"
	"storefront/pkg/log"
)

// ErrUnreachable returned by MemoryGateway for users marked unreachable
var ErrUnreachable = errors.New("user unreachable")

// DirectMessage a recorded direct message
type DirectMessage struct {
	UserID string
	Text   string
}

// Announcement a recorded announcement in its latest state
type Announcement struct {
	Ref     model.MessageRef
	Content string
	Buttons []model.Button
	Edits   int
}

// MemoryGateway logs every outbound message and keeps it in memory.
// Used by the "log" driver in development and by tests.
type MemoryGateway struct {
	mu            sync.Mutex
	seq           int
	dms           []DirectMessage
	announcements map[string]*Announcement
	order         []string
	unreachable   map[string]bool
	postErr       error
}

// NewMemoryGateway creates an empty gateway
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		announcements: make(map[string]*Announcement),
		unreachable:   make(map[string]bool),
	}
}

// SetUnreachable makes direct messages to userID fail
func (g *MemoryGateway) SetUnreachable(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unreachable[userID] = true
}

// FailAnnouncements makes post and edit return err; nil restores them
func (g *MemoryGateway) FailAnnouncements(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.postErr = err
}

func (g *MemoryGateway) SendDirectMessage(ctx context.Context, userID, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.unreachable[userID] {
		return ErrUnreachable
	}
	g.dms = append(g.dms, DirectMessage{UserID: userID, Text: text})
	log.WithFields(log.Fields{"user_id": userID, "text": text}).Info("Direct message")
	return nil
}

func (g *MemoryGateway) PostAnnouncement(ctx context.Context, channelID, content string, buttons []model.Button) (model.MessageRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.postErr != nil {
		return model.MessageRef{}, g.postErr
	}
	g.seq++
	ref := model.MessageRef{ChannelID: channelID, MessageID: strconv.Itoa(g.seq)}
	g.announcements[ref.MessageID] = &Announcement{Ref: ref, Content: content, Buttons: buttons}
	g.order = append(g.order, ref.MessageID)
	log.WithFields(log.Fields{"channel_id": channelID, "message_id": ref.MessageID, "buttons": len(buttons)}).Info("Announcement posted")
	return ref, nil
}

func (g *MemoryGateway) EditAnnouncement(ctx context.Context, ref model.MessageRef, content string, buttons []model.Button) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.postErr != nil {
		return g.postErr
	}
	a, ok := g.announcements[ref.MessageID]
	if !ok {
		return errors.New("unknown message " + ref.MessageID)
	}
	a.Content = content
	a.Buttons = buttons
	a.Edits++
	log.WithFields(log.Fields{"channel_id": ref.ChannelID, "message_id": ref.MessageID}).Info("Announcement edited")
	return nil
}

// DirectMessages returns the messages sent to userID, oldest first
func (g *MemoryGateway) DirectMessages(userID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []string
	for _, dm := range g.dms {
		if dm.UserID == userID {
			out = append(out, dm.Text)
		}
	}
	return out
}

// Announcements returns every announcement in posting order
func (g *MemoryGateway) Announcements() []Announcement {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Announcement, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.announcements[id])
	}
	return out
}

// Announcement returns the current state of one announcement
func (g *MemoryGateway) Announcement(ref model.MessageRef) (Announcement, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.announcements[ref.MessageID]
	if !ok {
		return Announcement{}, false
	}
	return *a, true
}
