package types

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// CachedUser stores the last known display information for a user, used as a
// fallback when a live directory lookup fails.
type CachedUser struct {
	bun.BaseModel `bun:"table:cached_users"`

	UserID     snowflake.ID `bun:",pk"`
	Username   string       `bun:",notnull,default:''"`
	GlobalName string       `bun:",notnull,default:''"`
	CachedAt   time.Time    `bun:",notnull"`
}

// DisplayName returns the best available name for rendering, preferring the
// user's global display name over the account username.
func (u *CachedUser) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}

	return u.Username
}
