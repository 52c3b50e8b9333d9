package integration

import (
	"context"
	"testing"
	"time"
)

func TestAuthService_Login_RoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p := h.newPlayer(t, "auth_login")

	player, access, refresh, err := h.auth.Login(ctx, "auth_login", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if player.ID != p.ID {
		t.Fatalf("got player id %d, want %d", player.ID, p.ID)
	}
	if access == "" || refresh == "" {
		t.Fatal("expected non-empty access and refresh tokens")
	}

	playerID, err := h.auth.AuthenticateAccessToken(access)
	if err != nil {
		t.Fatalf("authenticate access token: %v", err)
	}
	if playerID != p.ID {
		t.Fatalf("got player id %d from token, want %d", playerID, p.ID)
	}
}

func TestAuthService_Login_RejectsWrongPassword(t *testing.T) {
	h := newHarness(t)
	h.newPlayer(t, "auth_wrongpass")

	if _, _, _, err := h.auth.Login(context.Background(), "auth_wrongpass", "not-the-password"); err == nil {
		t.Fatal("expected wrong password to be rejected")
	}
}

func TestAuthService_Login_RejectsUnknownUsername(t *testing.T) {
	h := newHarness(t)

	if _, _, _, err := h.auth.Login(context.Background(), "nobody-by-this-name", "whatever"); err == nil {
		t.Fatal("expected unknown username to be rejected")
	}
}

func TestAuthService_Refresh_RotatesAndRevokesOldToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.newPlayer(t, "auth_refresh")

	_, _, refresh, err := h.auth.Login(ctx, "auth_refresh", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	newAccess, newRefresh, err := h.auth.Refresh(ctx, refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if newAccess == "" || newRefresh == "" {
		t.Fatal("expected non-empty rotated tokens")
	}
	if newRefresh == refresh {
		t.Fatal("expected a newly minted refresh token, not the same one")
	}

	if _, _, err := h.auth.Refresh(ctx, refresh); err == nil {
		t.Fatal("expected the rotated-away refresh token to be rejected on reuse")
	}
}

func TestAuthService_Logout_RevokesSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.newPlayer(t, "auth_logout")

	_, _, refresh, err := h.auth.Login(ctx, "auth_logout", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := h.auth.Logout(ctx, refresh); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, _, err := h.auth.Refresh(ctx, refresh); err == nil {
		t.Fatal("expected a logged-out refresh token to be rejected")
	}
}

func TestAuthService_RecoverAPIKeyByUsername_MatchesRegisteredKey(t *testing.T) {
	h := newHarness(t)
	p := h.newPlayer(t, "auth_recover")

	key, err := h.auth.RecoverAPIKeyByUsername(context.Background(), "auth_recover")
	if err != nil {
		t.Fatalf("recover api key: %v", err)
	}
	if key != p.APIKey {
		t.Fatalf("got key %q, want %q", key, p.APIKey)
	}
}

func TestAuthService_AuthenticateAPIKey_AcceptsRegisteredKey(t *testing.T) {
	h := newHarness(t)
	p := h.newPlayer(t, "auth_apikey")

	got, err := h.auth.AuthenticateAPIKey(context.Background(), p.APIKey)
	if err != nil {
		t.Fatalf("authenticate api key: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("got player id %d, want %d", got.ID, p.ID)
	}
}

func TestPlayerService_RotateAPIKey_InvalidatesOldKey(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.newPlayer(t, "player_rotatekey")

	newKey, err := h.players.RotateAPIKey(ctx, p.ID)
	if err != nil {
		t.Fatalf("rotate api key: %v", err)
	}
	if newKey == p.APIKey {
		t.Fatal("expected a freshly generated key, not the original")
	}

	if _, err := h.auth.AuthenticateAPIKey(ctx, p.APIKey); err == nil {
		t.Fatal("expected the old api key to be rejected after rotation")
	}
	if _, err := h.auth.AuthenticateAPIKey(ctx, newKey); err != nil {
		t.Fatalf("expected the rotated key to authenticate: %v", err)
	}
}

// TestPlayerService_ClaimDailyBonus_RequiresAPriorCalendarDay exercises the
// "didn't just register today" half of DailyBonusAvailable: a freshly
// registered player's last_login_date equals their registration date, so
// the bonus is not claimable until a prior login has been recorded.
func TestPlayerService_ClaimDailyBonus_RequiresAPriorCalendarDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.newPlayer(t, "player_bonus_fresh")

	if h.players.DailyBonusAvailable(p) {
		t.Fatal("expected a freshly registered player to not yet be bonus-eligible")
	}

	if _, err := h.players.ClaimDailyBonus(ctx, p.ID); err == nil {
		t.Fatal("expected claim to be rejected for a freshly registered player")
	}
}

func TestPlayerService_ClaimDailyBonus_CreditsOnceThenBlocksSameDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.newPlayer(t, "player_bonus_claim")

	yesterday := time.Now().UTC().Truncate(24 * time.Hour).Add(-24 * time.Hour)
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := h.playerRepo.SetLastLoginDate(ctx, tx, p.ID, yesterday); err != nil {
		tx.Rollback(ctx)
		t.Fatalf("backdate last login: %v", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE players SET created_at = $1 WHERE id = $2`, yesterday.Add(-24*time.Hour), p.ID); err != nil {
		tx.Rollback(ctx)
		t.Fatalf("backdate registration: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	before, err := h.players.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if !h.players.DailyBonusAvailable(before) {
		t.Fatal("expected bonus to be available after backdating last login")
	}

	newBalance, err := h.players.ClaimDailyBonus(ctx, p.ID)
	if err != nil {
		t.Fatalf("claim daily bonus: %v", err)
	}
	if newBalance != before.Balance+50 {
		t.Fatalf("got balance %d, want %d", newBalance, before.Balance+50)
	}

	if _, err := h.players.ClaimDailyBonus(ctx, p.ID); err == nil {
		t.Fatal("expected a same-day second claim to be rejected")
	}
}
