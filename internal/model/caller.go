package model

// Caller who triggered an inbound event
type Caller struct {
	UserID string `json:"user_id"`
	Tag    string `json:"tag"` // display name
	Admin  bool   `json:"admin"`
}

// Display name used in announcements, falls back to a mention
func (c Caller) Display() string {
	if c.Tag != "" {
		return c.Tag
	}
	return "<@" + c.UserID + ">"
}
