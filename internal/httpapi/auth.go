package httpapi

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"salestrack/backend/internal/domain"
	"salestrack/backend/internal/service"
	"salestrack/backend/internal/store"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errAccountInactive    = errors.New("account is outside its validity window")
)

// SellerLookup is the slice of the seller store that authentication needs.
type SellerLookup interface {
	GetSeller(ctx context.Context, id int64) (*domain.Seller, error)
	GetSellerByEmail(ctx context.Context, email string) (*domain.Seller, error)
}

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	sellers  SellerLookup
	now      func() time.Time
}

type salesClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, sellers SellerLookup) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		sellers:  sellers,
		now:      time.Now,
	}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	seller, err := a.sellers.GetSellerByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResponse{}, errInvalidCredentials
		}
		return domain.LoginResponse{}, err
	}
	if !service.VerifyPassword(seller.PasswordHash, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	now := a.now().UTC()
	if !seller.ActiveOn(now) {
		return domain.LoginResponse{}, errAccountInactive
	}

	expiresAt := now.Add(a.tokenTTL)
	token, err := a.sign(seller.ID, seller.Role, now, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        seller.Role,
		SellerID:    seller.ID,
		Name:        seller.Name,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &salesClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	sellerID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || sellerID <= 0 {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	switch claims.Role {
	case domain.RoleSeller, domain.RoleAdmin:
	default:
		return domain.Actor{}, errors.New("invalid token role")
	}
	return domain.Actor{SellerID: sellerID, Role: claims.Role}, nil
}

// Refresh reloads the token's seller so role changes and an expired validity
// window take effect before the token itself expires.
func (a *AuthManager) Refresh(ctx context.Context, actor domain.Actor) (domain.Actor, error) {
	seller, err := a.sellers.GetSeller(ctx, actor.SellerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Actor{}, errInvalidCredentials
		}
		return domain.Actor{}, err
	}
	if !seller.ActiveOn(a.now().UTC()) {
		return domain.Actor{}, errAccountInactive
	}
	return domain.Actor{SellerID: seller.ID, Role: seller.Role}, nil
}

func (a *AuthManager) sign(sellerID int64, role string, issuedAt time.Time, expiresAt time.Time) (string, error) {
	claims := salesClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.FormatInt(sellerID, 10),
			IssuedAt:  jwtlib.NewNumericDate(issuedAt),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "salestrack",
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
