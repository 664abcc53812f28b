package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/cropmarket-backend/pkg/config"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "cropmarket", ExpirationMinutes: 30}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{UserID: userID, Role: enums.RoleDealer, Email: "dealer@example.com"})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != enums.RoleDealer {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Email != "dealer@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(now) {
		t.Fatalf("expected expiry after now")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleFarmer})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseAccessTokenRejectsWrongSecretAndIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleFarmer})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	wrongSecret := cfg
	wrongSecret.Secret = "other"
	if _, err := ParseAccessToken(wrongSecret, token); err == nil {
		t.Fatal("expected wrong secret to fail")
	}

	wrongIssuer := cfg
	wrongIssuer.Issuer = "someone-else"
	if _, err := ParseAccessToken(wrongIssuer, token); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
}

func TestParseAccessTokenRejectsUnknownRole(t *testing.T) {
	cfg := testJWTConfig()
	claims := AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.Role("owner"),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected unknown role to be rejected, got %v", err)
	}
}

func TestMintAccessTokenValidatesPayload(t *testing.T) {
	cfg := testJWTConfig()
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.RoleDealer}); err == nil {
		t.Fatal("expected missing user id to fail")
	}
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: "nope"}); err == nil {
		t.Fatal("expected invalid role to fail")
	}
}

func TestParseAccessTokenToleratesClockSkew(t *testing.T) {
	cfg := testJWTConfig()
	// expired 10s ago, inside the skew allowance
	issued := time.Now().Add(-cfg.Expiration() - 10*time.Second)
	token, err := MintAccessToken(cfg, issued, AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleDealer})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err != nil {
		t.Fatalf("expected token within skew to pass, got %v", err)
	}
}

func TestParseAccessTokenRejectsMismatchedSubject(t *testing.T) {
	cfg := testJWTConfig()
	claims := AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.RoleDealer,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected subject mismatch to be rejected, got %v", err)
	}
}

func TestParseAccessTokenRejectsNoneAlgorithm(t *testing.T) {
	cfg := testJWTConfig()
	claims := AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected alg none to be rejected, got %v", err)
	}
}
