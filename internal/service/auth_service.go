package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

var ErrInvalidCredentials = errors.New("invalid username or password")
var ErrUserAlreadyExists = errors.New("username already exists")
var ErrTokenInvalid = errors.New("token is invalid or expired")

type AuthService struct {
	userRepo           repository.UserRepository
	jwtSecret          string
	jwtExpirationHours time.Duration
	logger             *logrus.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string, jwtExpHours time.Duration, logger *logrus.Logger) *AuthService {
	return &AuthService{
		userRepo:           userRepo,
		jwtSecret:          jwtSecret,
		jwtExpirationHours: jwtExpHours,
		logger:             logger,
	}
}

// Register creates a regular user and signs them in. Staff accounts are provisioned with EnsureUser.
func (s *AuthService) Register(ctx context.Context, dto domain.RegisterUserDTO) (*domain.AuthResponseDTO, error) {
	user, err := s.createUser(ctx, dto.Username, dto.Name, dto.Password, domain.RoleUser)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("user_id", user.ID).Info("User registered")
	return s.issueToken(user)
}

// EnsureUser creates the account when the username is free and leaves an existing one untouched.
func (s *AuthService) EnsureUser(ctx context.Context, username, password string, role domain.Role) error {
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q", role)
	}
	_, err := s.createUser(ctx, username, username, password, role)
	if errors.Is(err, ErrUserAlreadyExists) {
		return nil
	}
	if err == nil {
		s.logger.WithFields(logrus.Fields{"username": username, "role": role}).Info("Provisioned user account")
	}
	return err
}

func (s *AuthService) createUser(ctx context.Context, username, name, password string, role domain.Role) (*domain.User, error) {
	existingUser, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if existingUser != nil {
		return nil, ErrUserAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &domain.User{
		Username: username,
		Name:     name,
		Password: string(hashedPassword),
		Role:     role,
	}
	createdUser, err := s.userRepo.Create(ctx, user)
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	createdUser.Password = ""
	return createdUser, nil
}

func (s *AuthService) Login(ctx context.Context, dto domain.LoginUserDTO) (*domain.AuthResponseDTO, error) {
	user, err := s.userRepo.FindByUsername(ctx, dto.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(dto.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueToken(user)
}

func (s *AuthService) issueToken(user *domain.User) (*domain.AuthResponseDTO, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.Itoa(user.ID),
		"exp":      now.Add(s.jwtExpirationHours).Unix(),
		"iat":      now.Unix(),
		"role":     string(user.Role),
		"username": user.Username,
		"name":     user.Name,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}

	return &domain.AuthResponseDTO{
		Token:    tokenString,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, nil
}

// ValidateToken parses a bearer token and resolves the caller it was issued to.
func (s *AuthService) ValidateToken(tokenString string) (*domain.Actor, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: malformed token", ErrTokenInvalid)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: token expired", ErrTokenInvalid)
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, fmt.Errorf("%w: token not valid yet", ErrTokenInvalid)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return actorFromClaims(claims)
}

func actorFromClaims(claims jwt.MapClaims) (*domain.Actor, error) {
	sub, okSub := claims["sub"].(string)
	role, okRole := claims["role"].(string)
	username, okUsername := claims["username"].(string)
	if !okSub || !okRole || !okUsername {
		return nil, fmt.Errorf("%w: missing user claims", ErrTokenInvalid)
	}
	userID, err := strconv.Atoi(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject %q", ErrTokenInvalid, sub)
	}
	if !domain.Role(role).IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, role)
	}
	name, _ := claims["name"].(string)
	return &domain.Actor{
		UserID:   userID,
		Username: username,
		Name:     name,
		Role:     domain.Role(role),
	}, nil
}
