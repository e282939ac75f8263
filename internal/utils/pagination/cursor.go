// Package pagination implements opaque keyset cursors for listings ordered by
// (updated_at DESC, id DESC).
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrBadToken marks tokens that don't decode; callers usually surface this as
// a validation failure.
var ErrBadToken = errors.New("invalid pagination token")

// Cursor pins the position after one row. The timestamp travels in millis so
// the token stays stable across timezone and precision differences.
type Cursor struct {
	ID          uint64 `json:"id"`
	UpdatedUnix int64  `json:"updated_unix,omitempty"`
}

// After builds the cursor pointing past the given row.
func After(id uint64, updatedAt time.Time) Cursor {
	return Cursor{ID: id, UpdatedUnix: updatedAt.UnixMilli()}
}

// Zero reports whether the cursor carries no position (first page).
func (c Cursor) Zero() bool {
	return c.ID == 0 && c.UpdatedUnix == 0
}

// UpdatedAt recovers the pinned timestamp.
func (c Cursor) UpdatedAt() time.Time {
	return time.UnixMilli(c.UpdatedUnix)
}

// Token serializes the cursor into its opaque wire form.
func (c Cursor) Token() string {
	b, _ := json.Marshal(c)
	return base64.URLEncoding.EncodeToString(b)
}

// Parse decodes a token. Empty means first page; anything that doesn't decode
// is ErrBadToken, details withheld since clients can't act on them.
func Parse(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrBadToken
	}

	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, ErrBadToken
	}
	return c, nil
}
