package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/quipflip/backend/internal/domain"
	"github.com/quipflip/backend/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// AuthService mints access tokens and rotates refresh tokens (§4.5). A
// valid access token and a valid legacy API key are equivalent principals;
// this service only produces the former, the handler boundary accepts
// either and never reveals which one authorised a request.
type AuthService struct {
	playerRepo  *repository.PlayerRepository
	sessionRepo *repository.SessionRepository
	jwt         *JWTIssuer
	refreshTTL  time.Duration
}

func NewAuthService(playerRepo *repository.PlayerRepository, sessionRepo *repository.SessionRepository, jwt *JWTIssuer, refreshTTL time.Duration) *AuthService {
	return &AuthService{playerRepo: playerRepo, sessionRepo: sessionRepo, jwt: jwt, refreshTTL: refreshTTL}
}

// Login verifies the password and mints an (access, rawRefresh) pair.
func (s *AuthService) Login(ctx context.Context, username, password string) (player *domain.Player, access, rawRefresh string, err error) {
	player, err = s.playerRepo.GetByUsername(ctx, username)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, "", "", domain.NewError(domain.ErrInvalidCredentials)
		}
		return nil, "", "", err
	}

	if !verifyPassword(player.PasswordHash, password) {
		return nil, "", "", domain.NewError(domain.ErrInvalidCredentials)
	}

	access, rawRefresh, err = s.issueTokens(ctx, player.ID)
	return player, access, rawRefresh, err
}

func verifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *AuthService) issueTokens(ctx context.Context, playerID int64) (access, rawRefresh string, err error) {
	access, err = s.jwt.Generate(playerID)
	if err != nil {
		return "", "", err
	}

	rawRefresh, err = newRefreshToken()
	if err != nil {
		return "", "", err
	}

	if _, err := s.sessionRepo.Create(ctx, playerID, hashToken(rawRefresh), time.Now().Add(s.refreshTTL)); err != nil {
		return "", "", err
	}

	return access, rawRefresh, nil
}

// Refresh validates the presented raw refresh token against its session
// row, then atomically rotates: a new session is created and the old one
// revoked. Both the access and refresh token returned are fresh.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (access, newRawRefresh string, err error) {
	session, err := s.sessionRepo.GetByTokenHash(ctx, hashToken(rawRefresh))
	if err != nil {
		if err == repository.ErrNotFound {
			return "", "", domain.NewError(domain.ErrTokenRevoked)
		}
		return "", "", err
	}

	if session.Revoked {
		return "", "", domain.NewError(domain.ErrTokenRevoked)
	}
	if time.Now().After(session.ExpiresAt) {
		return "", "", domain.NewError(domain.ErrTokenExpired)
	}

	access, newRawRefresh, err = s.issueTokens(ctx, session.PlayerID)
	if err != nil {
		return "", "", err
	}

	if err := s.sessionRepo.Revoke(ctx, session.ID); err != nil {
		return "", "", err
	}

	return access, newRawRefresh, nil
}

func (s *AuthService) Logout(ctx context.Context, rawRefresh string) error {
	session, err := s.sessionRepo.GetByTokenHash(ctx, hashToken(rawRefresh))
	if err != nil {
		if err == repository.ErrNotFound {
			return nil
		}
		return err
	}
	return s.sessionRepo.Revoke(ctx, session.ID)
}

// AuthenticateAccessToken parses and validates a bearer access token,
// returning the player id it carries.
func (s *AuthService) AuthenticateAccessToken(token string) (int64, error) {
	playerID, err := s.jwt.Parse(token)
	if err != nil {
		return 0, domain.NewError(domain.ErrTokenExpired)
	}
	return playerID, nil
}

// AuthenticateAPIKey resolves the legacy principal. Equivalent in
// authorisation weight to a bearer access token (§4.5).
func (s *AuthService) AuthenticateAPIKey(ctx context.Context, apiKey string) (*domain.Player, error) {
	player, err := s.playerRepo.GetByAPIKey(ctx, apiKey)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, domain.NewError(domain.ErrInvalidCredentials)
		}
		return nil, err
	}
	return player, nil
}

// RecoverAPIKeyByUsername is the legacy POST /player/login surface: maps a
// username straight to its API key, no password required (§4.4).
func (s *AuthService) RecoverAPIKeyByUsername(ctx context.Context, username string) (string, error) {
	player, err := s.playerRepo.GetByUsername(ctx, username)
	if err != nil {
		if err == repository.ErrNotFound {
			return "", domain.NewError(domain.ErrUsernameNotFound)
		}
		return "", err
	}
	return player.APIKey, nil
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
