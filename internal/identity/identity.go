package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"eventTickets/internal/model"
	"eventTickets/internal/repo"
)

// Principal is what a verified bearer token says about the caller.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Role   model.Role
}

type Claims struct {
	Email string     `json:"email"`
	Name  string     `json:"name"`
	Role  model.Role `json:"role"`
	jwt.RegisteredClaims
}

type Provider struct {
	repo   repo.Repository
	log    *zerolog.Logger
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

func NewProvider(r repo.Repository, log *zerolog.Logger, secret string, ttl time.Duration) *Provider {
	return &Provider{
		repo:   r,
		log:    log,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     model.Role
}

const maxPasswordBytes = 72

func (p *Provider) Register(ctx context.Context, in RegisterInput) (*model.User, string, error) {
	if !in.Role.Valid() {
		return nil, "", fmt.Errorf("%w: role %q", model.ErrInvalidInput, in.Role)
	}
	// bcrypt limits bytes, not characters.
	if len(in.Password) > maxPasswordBytes {
		return nil, "", fmt.Errorf("%w: password longer than %d bytes", model.ErrInvalidInput, maxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), p.cost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Name:         in.Name,
		Role:         in.Role,
		PasswordHash: string(hash),
		CreatedAt:    p.now().UTC(),
	}
	if err := p.repo.CreateUser(ctx, u); err != nil {
		return nil, "", err
	}

	token, err := p.Issue(u)
	if err != nil {
		return nil, "", err
	}
	p.log.Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("user registered")
	return u, token, nil
}

func (p *Provider) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	u, err := p.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, "", model.ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", model.ErrInvalidCredentials
	}

	token, err := p.Issue(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Issue signs an HS256 token for u.
func (p *Provider) Issue(u *model.User) (string, error) {
	now := p.now()
	claims := Claims{
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (p *Provider) Verify(token string) (*Principal, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token", model.ErrUnauthorized)
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: incomplete token", model.ErrUnauthorized)
	}
	return &Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   claims.Role,
	}, nil
}
