package repository

import (
	"context"

	"github.com/sakif/anilink/internal/model"
)

// LinkRepository is the Link Store: durable creation and lookup of user links.
//
// It performs no verification of its own. Whoever calls Create is expected
// to have confirmed the username upstream first.
type LinkRepository interface {
	// Create inserts a link and returns the committed record. Either the full
	// record is returned or nothing is committed.
	Create(ctx context.Context, externalID int64, username string) (*model.UserLink, error)

	// FindByExternalID returns the most recently created link for externalID.
	// found is false (with a nil error) when there is none.
	FindByExternalID(ctx context.Context, externalID int64) (link *model.UserLink, found bool, err error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
