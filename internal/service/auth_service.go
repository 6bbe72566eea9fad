// Package service holds the business logic behind the HTTP handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"platefeed/internal/cache"
	"platefeed/internal/models"
	"platefeed/internal/repository"
	"platefeed/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer   = "platefeed-api"
	tokenAudience = "platefeed-client"
	wsTicketTTL   = 30 * time.Second
)

type AuthService struct {
	users  repository.UserRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// AuthUser is the account identity returned with a token.
type AuthUser struct {
	ID             primitive.ObjectID `json:"id"`
	Username       string             `json:"username"`
	Email          string             `json:"email"`
	ProfilePicture string             `json:"profile_picture"`
}

type AuthResult struct {
	Token string   `json:"token"`
	User  AuthUser `json:"user"`
}

func NewAuthService(users repository.UserRepository, secret string, ttl time.Duration) *AuthService {
	return &AuthService{users: users, secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if err := validation.ValidateUsername(username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if existing, err := s.users.GetByEmail(ctx, email); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("User with this email or username already exists", nil)
	}
	if existing, err := s.users.GetByUsername(ctx, username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, models.NewConflictError("User with this email or username already exists", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{Username: username, Email: email, Password: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.result(user)
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return s.result(user)
}

// Me returns the authenticated user's record.
func (s *AuthService) Me(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *AuthService) result(user *models.User) (*AuthResult, error) {
	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{
		Token: token,
		User: AuthUser{
			ID:             user.ID,
			Username:       user.Username,
			Email:          user.Email,
			ProfilePicture: user.ProfilePicture,
		},
	}, nil
}

// IssueToken signs an HS256 token whose subject is the user's hex ID.
func (s *AuthService) IssueToken(userID primitive.ObjectID) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("JWT secret not configured")
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.Hex(),
		Issuer:    tokenIssuer,
		Audience:  jwt.ClaimStrings{tokenAudience},
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *AuthService) parse(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	return claims, nil
}

// VerifyToken validates the signature, issuer, audience and expiry and rejects
// revoked tokens. It returns the subject user ID and the token ID.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (primitive.ObjectID, string, error) {
	claims, err := s.parse(token)
	if err != nil {
		return primitive.NilObjectID, "", err
	}
	userID, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return primitive.NilObjectID, "", models.NewUnauthorizedError("Invalid token subject")
	}
	revoked, err := cache.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return primitive.NilObjectID, "", models.NewInternalError(err)
	}
	if revoked {
		return primitive.NilObjectID, "", models.NewUnauthorizedError("Token has been revoked")
	}
	return userID, claims.ID, nil
}

// Logout revokes token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if err := cache.Blacklist(ctx, claims.ID, ttl); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// IssueWSTicket returns a short-lived single-use ticket for opening the
// activity stream from clients that cannot send headers on upgrade.
func (s *AuthService) IssueWSTicket(ctx context.Context, userID primitive.ObjectID) (string, error) {
	ticket := uuid.NewString()
	if err := cache.StoreTicket(ctx, ticket, userID.Hex(), wsTicketTTL); err != nil {
		return "", models.NewInternalError(fmt.Errorf("store ws ticket: %w", err))
	}
	return ticket, nil
}

func (s *AuthService) RedeemWSTicket(ctx context.Context, ticket string) (primitive.ObjectID, error) {
	subject, ok, err := cache.RedeemTicket(ctx, ticket)
	if err != nil {
		return primitive.NilObjectID, models.NewInternalError(err)
	}
	if !ok {
		return primitive.NilObjectID, models.NewUnauthorizedError("Invalid or expired WebSocket ticket")
	}
	userID, err := primitive.ObjectIDFromHex(subject)
	if err != nil {
		return primitive.NilObjectID, models.NewUnauthorizedError("Invalid WebSocket ticket")
	}
	return userID, nil
}
