// Package model defines the data structures used throughout the application.
package model

import "time"

// UserLink associates a Discord account with an AniList username.
//
// ID is assigned by the store and grows with every insert, so it doubles as
// the insertion order. ExternalID is the Discord user id (a 64-bit snowflake)
// and is encoded as a JSON string: snowflakes exceed 2^53, the largest integer
// a JavaScript number holds exactly.
// Several links may share an ExternalID; the one with the largest ID wins.
//
// Links are created once and never updated or deleted. Callers always get a
// copy; nothing hands out pointers into the store.
type UserLink struct {
	ID         int64     `json:"id"`
	ExternalID int64     `json:"external_id,string"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"created_at"`
}
