package domain

import "time"

const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

type DeviceToken struct {
	ID           int64
	UserID       int64
	Token        string
	Platform     string
	RegisteredAt time.Time
	LastUsed     *time.Time
}
