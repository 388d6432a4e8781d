// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// LinkService only sees interfaces (Verifier, repository.LinkRepository), so
// tests swap in fakes and the server wires the AniList client and SQLite.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/anilink/internal/anilist"
	"github.com/sakif/anilink/internal/apperror"
	"github.com/sakif/anilink/internal/model"
	"github.com/sakif/anilink/internal/repository"
)

// Verifier confirms that a username exists upstream.
// *anilist.Client implements it.
type Verifier interface {
	Verify(ctx context.Context, username string) (anilist.Outcome, error)
}

// LinkService runs the linking workflow: verify the username upstream, then
// (and only then) store the link.
//
// It keeps no state between calls. A call that ends in Unavailable can be
// retried by the caller and the retry is a brand-new attempt.
type LinkService struct {
	verifier Verifier
	repo     repository.LinkRepository
	logger   *slog.Logger
}

// NewLinkService creates a LinkService.
func NewLinkService(verifier Verifier, repo repository.LinkRepository, logger *slog.Logger) *LinkService {
	return &LinkService{
		verifier: verifier,
		repo:     repo,
		logger:   logger,
	}
}

// Link verifies username on AniList and, if it exists, links it to the
// Discord account externalID.
//
// OUTCOMES:
//   - linked         → (*model.UserLink, nil)
//   - bad input      → apperror.ErrValidation, nothing called
//   - no such user   → apperror.ErrNotFound, store never touched
//   - AniList down   → apperror.ErrUnavailable, store never touched
//   - store failure  → apperror.ErrStorage, nothing committed
//
// The verification call holds no storage connection; a connection is taken
// from the pool only for the Create itself.
func (s *LinkService) Link(ctx context.Context, externalID int64, username string) (*model.UserLink, error) {
	if err := validateExternalID(externalID); err != nil {
		return nil, err
	}

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}

	outcome, err := s.verifier.Verify(ctx, username)
	switch outcome {
	case anilist.Found:
		// fall through to Create below
	case anilist.NotFound:
		s.logger.Info("upstream user not found",
			slog.Int64("externalID", externalID),
			slog.String("username", username),
		)
		return nil, apperror.NotFound("anilist user", username)
	default:
		if err == nil {
			err = errors.New("verifier gave no answer")
		}
		s.logger.Warn("verification unavailable",
			slog.Int64("externalID", externalID),
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Unavailable("anilist", err)
	}

	link, err := s.repo.Create(ctx, externalID, username)
	if err != nil {
		s.logger.Error("failed to create link",
			slog.Int64("externalID", externalID),
			slog.String("username", username),
			slog.String("error", apperror.CauseOf(err).Error()),
		)
		return nil, fmt.Errorf("linking user: %w", asStorageError("creating link", err))
	}

	s.logger.Info("link created",
		slog.Int64("id", link.ID),
		slog.Int64("externalID", link.ExternalID),
		slog.String("username", link.Username),
	)

	return link, nil
}

// Lookup returns the most recent link for externalID, or apperror.ErrNotFound
// when the account was never linked.
func (s *LinkService) Lookup(ctx context.Context, externalID int64) (*model.UserLink, error) {
	if err := validateExternalID(externalID); err != nil {
		return nil, err
	}

	link, found, err := s.repo.FindByExternalID(ctx, externalID)
	if err != nil {
		s.logger.Error("failed to look up link",
			slog.Int64("externalID", externalID),
			slog.String("error", apperror.CauseOf(err).Error()),
		)
		return nil, fmt.Errorf("looking up link: %w", asStorageError("finding link", err))
	}
	if !found {
		return nil, apperror.NotFound("link", strconv.FormatInt(externalID, 10))
	}

	return link, nil
}

// Ready reports whether the store can serve requests.
func (s *LinkService) Ready(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return apperror.Storage("pinging store", err)
	}
	return nil
}

// Discord snowflakes are positive; zero is what a missing JSON field decodes to.
func validateExternalID(externalID int64) error {
	if externalID <= 0 {
		return apperror.ValidationFailed("external_id", "external_id must be a positive integer")
	}
	return nil
}

// asStorageError keeps repository errors that are already classified and
// marks everything else as a storage failure.
func asStorageError(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Storage(op, err)
}
