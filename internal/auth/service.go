package auth

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"snappy-license-server/internal/database"
	"snappy-license-server/internal/events"
)

// WelcomeMailer sends the registration greeting. Delivery is best
// effort; registration never fails on a mail error.
type WelcomeMailer interface {
	SendWelcomeEmail(ctx context.Context, toEmail, toName string) error
	IsConfigured() bool
}

// Service handles user registration and authentication
type Service struct {
	repo            *database.Repository
	jwtManager      *JWTManager
	passwordManager *PasswordManager
	mailer          WelcomeMailer
	bus             *events.EventBus
	logger          zerolog.Logger
}

// NewService creates a new auth service. mailer and bus may be nil.
func NewService(repo *database.Repository, jwtManager *JWTManager, passwordManager *PasswordManager, mailer WelcomeMailer, bus *events.EventBus, logger zerolog.Logger) *Service {
	return &Service{
		repo:            repo,
		jwtManager:      jwtManager,
		passwordManager: passwordManager,
		mailer:          mailer,
		bus:             bus,
		logger:          logger.With().Str("component", "auth_service").Logger(),
	}
}

// Register creates a new user account and returns a logged-in session
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	if err := s.passwordManager.ValidatePasswordStrength(req.Password); err != nil {
		return nil, AuthError{Code: ErrWeakPassword.Code, Message: err.Error()}
	}

	hash, err := s.passwordManager.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &database.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if s.repo.IsUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", email).Msg("User registered")

	if s.bus != nil {
		s.bus.PublishUserRegistered(user.ID, email)
	}

	if s.mailer != nil && s.mailer.IsConfigured() {
		go func() {
			if err := s.mailer.SendWelcomeEmail(context.Background(), user.Email, user.Name); err != nil {
				s.logger.Warn().Err(err).Str("email", user.Email).Msg("Welcome email failed")
			}
		}()
	}

	return s.buildLoginResponse(user)
}

// Login authenticates a user by email and password
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Burn a hash comparison so a missing account costs the same
		// as a wrong password.
		s.passwordManager.VerifyPassword(req.Password, "$2a$12$invalidsaltinvalidsaltinvalidsaltinvalidsaltinvalidsa")
		return nil, ErrInvalidCredentials
	}

	if !s.passwordManager.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if err := s.repo.UpdateUserLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record last login")
	}

	s.logger.Info().Str("user_id", user.ID).Msg("User logged in")

	return s.buildLoginResponse(user)
}

// GetUser returns the user profile for an authenticated user
func (s *Service) GetUser(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *Service) buildLoginResponse(user *database.User) (*LoginResponse, error) {
	token, err := s.jwtManager.GenerateAccessToken(UserClaims{
		UserID:  user.ID,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
	})
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		User:        toUserResponse(user),
		AccessToken: token,
		ExpiresIn:   s.jwtManager.GetAccessTokenDuration(),
		TokenType:   "Bearer",
	}, nil
}

func toUserResponse(user *database.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Phone:       user.Phone,
		IsAdmin:     user.IsAdmin,
		CreatedAt:   user.CreatedAt,
		LastLoginAt: user.LastLoginAt,
	}
}
