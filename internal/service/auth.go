package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Dan9191/bank-portal/internal/models"
	"github.com/Dan9191/bank-portal/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Claims is the JWT payload issued by Login
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Register creates a customer with a hashed password
func (s *Service) Register(ctx context.Context, email, fullName, password string) (*models.User, error) {
	return s.createUser(ctx, email, fullName, password, models.RoleCustomer)
}

// EnsureAdmin creates the bootstrap administrator when it does not exist yet
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.FindUserByEmail(ctx, email)
	if err == nil {
		if user.Role != models.RoleAdmin {
			return nil, fmt.Errorf("bootstrap user %s exists without admin role", email)
		}
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeErr("find user", err)
	}
	return s.createUser(ctx, email, "Administrator", password, models.RoleAdmin)
}

func (s *Service) createUser(ctx context.Context, email, fullName, password string, role models.Role) (*models.User, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return nil, invalid("email", "must be an e-mail address")
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, invalid("full_name", "is required")
	}
	if len(password) < 8 {
		return nil, invalid("password", "must be at least 8 characters")
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		FullName:     fullName,
		Role:         role,
		PasswordHash: string(hashedPassword),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, storeErr("create user", err)
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.repo.FindUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return "", ErrInvalidCredentials
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWTTTL)),
		},
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tokenString, nil
}

// ParseToken validates a token issued by Login and returns its caller
func ParseToken(tokenString, secret string) (Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Actor{}, ErrInvalidCredentials
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Actor{}, ErrInvalidCredentials
	}
	if claims.Role != models.RoleAdmin && claims.Role != models.RoleCustomer {
		return Actor{}, ErrInvalidCredentials
	}
	return Actor{UserID: id, Role: claims.Role}, nil
}
