package entity

import (
	"time"
)

// User is the aggregate root for the account domain.
// Password holds the bcrypt hash; it must never reach a client.
type User struct {
	ID        string
	Email     string
	Password  string
	Name      string
	AvatarURL string
	AvatarID  string // durable identifier of the remote asset
	Phone     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
