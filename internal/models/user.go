package models

import (
	"time"
)

// NotificationPreferences allows users to control alert channels.
type NotificationPreferences struct {
	EmailAlerts bool `bson:"email_alerts" json:"email_alerts"`
	PushAlerts  bool `bson:"push_alerts" json:"push_alerts"`
}

// DefaultNotificationPreferences is applied to users that never set any.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{EmailAlerts: true, PushAlerts: true}
}

// User represents a user in the system.
type User struct {
	Base                    `bson:",inline"`
	Name                    string                   `bson:"name" json:"name"`
	Email                   string                   `bson:"email" json:"email"`
	IsAdmin                 bool                     `bson:"is_admin" json:"is_admin"`
	Suspended               bool                     `bson:"suspended" json:"suspended"`
	PushTokens              []string                 `bson:"push_tokens,omitempty" json:"-"`
	NotificationPreferences *NotificationPreferences `bson:"notification_preferences,omitempty" json:"notification_preferences,omitempty"`
	UpdatedAt               time.Time                `bson:"updated_at" json:"updated_at"`
	CreatedAt               time.Time                `bson:"created_at" json:"created_at"`
	Deleted                 bool                     `bson:"deleted" json:"-"` // Soft delete flag
}

// Preferences returns the stored preferences or the defaults.
func (u *User) Preferences() NotificationPreferences {
	if u.NotificationPreferences == nil {
		return DefaultNotificationPreferences()
	}
	return *u.NotificationPreferences
}
