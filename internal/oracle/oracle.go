// Package oracle talks to the third-party play-history service used as proof
// of mission completion.
package oracle

import (
	"context"
	"time"

	"clubrun/internal/domain"
)

// TokenSet is the result of a refresh. RefreshToken may be empty when the
// provider rotates only the access token.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Client is the boundary the verification worker calls through. Implemented
// by the HTTP client below and by fakes in tests.
type Client interface {
	RefreshToken(ctx context.Context, refreshToken string) (TokenSet, error)
	VerifyTrackPlay(ctx context.Context, accessToken string, track domain.TrackRequirement, start, end time.Time) (domain.VerificationResult, error)
}
