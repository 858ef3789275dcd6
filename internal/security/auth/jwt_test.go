package auth

import (
	"testing"
	"time"
)

func newTestManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager("access-secret", "refresh-secret", 30*time.Minute, 168*time.Hour)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	return tm
}

func TestNewTokenManagerRejectsBadSecrets(t *testing.T) {
	if _, err := NewTokenManager("", "refresh", time.Minute, time.Hour); err == nil {
		t.Fatalf("expected error for empty access secret")
	}
	if _, err := NewTokenManager("same", "same", time.Minute, time.Hour); err == nil {
		t.Fatalf("expected error for identical secrets")
	}
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	tm := newTestManager(t)

	token, err := tm.IssueAccessToken("writer@org.com", "user")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := tm.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.Email != "writer@org.com" || claims.Role != "user" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Fatalf("expected access type claim, got %q", claims.TokenType)
	}
}

func TestTokenTypeCrossRejection(t *testing.T) {
	tm := newTestManager(t)

	access, _ := tm.IssueAccessToken("writer@org.com", "user")
	refresh, _ := tm.IssueRefreshToken("writer@org.com", "user")

	if _, err := tm.VerifyRefreshToken(access); err == nil {
		t.Fatalf("access token must not verify as refresh")
	}
	if _, err := tm.VerifyAccessToken(refresh); err == nil {
		t.Fatalf("refresh token must not verify as access")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	tm := newTestManager(t)
	other, err := NewTokenManager("different-access", "different-refresh", 30*time.Minute, 168*time.Hour)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	token, _ := tm.IssueAccessToken("writer@org.com", "user")
	if _, err := other.VerifyAccessToken(token); err == nil {
		t.Fatalf("token signed with a different secret must not verify")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	tm, err := NewTokenManager("access-secret", "refresh-secret", -time.Minute, 168*time.Hour)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	token, _ := tm.IssueAccessToken("writer@org.com", "user")
	if _, err := tm.VerifyAccessToken(token); err == nil {
		t.Fatalf("expired token must not verify")
	}
}

func TestZeroTTLTokenRejected(t *testing.T) {
	tm, err := NewTokenManager("access-secret", "refresh-secret", 0, 168*time.Hour)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}

	// A zero TTL puts exp at the moment of issuance, which is already in
	// the past when verification runs.
	token, _ := tm.IssueAccessToken("writer@org.com", "user")
	if _, err := tm.VerifyAccessToken(token); err == nil {
		t.Fatalf("token expiring at issuance must not verify")
	}
}

func TestIssueRequiresEmail(t *testing.T) {
	tm := newTestManager(t)
	if _, err := tm.IssueAccessToken("", "user"); err == nil {
		t.Fatalf("expected error for empty email")
	}
}

func TestExtractToken(t *testing.T) {
	if tok, err := ExtractToken("Bearer abc.def.ghi"); err != nil || tok != "abc.def.ghi" {
		t.Fatalf("got %q, %v", tok, err)
	}
	for _, header := range []string{"", "abc", "Basic abc", "Bearer a b"} {
		if _, err := ExtractToken(header); err == nil {
			t.Fatalf("expected error for header %q", header)
		}
	}
}
