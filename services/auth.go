package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"legalestate/auth"
	"legalestate/config"
	"legalestate/events"
	"legalestate/models"
	"legalestate/monitoring"
)

const minPasswordLength = 8

// AuthService handles lawyer registration and login for both roles.
type AuthService struct {
	repo      models.Repository
	tokens    *auth.TokenIssuer
	publisher events.Publisher
	lawyerTTL time.Duration
	clientTTL time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewAuthService(repo models.Repository, tokens *auth.TokenIssuer, publisher events.Publisher, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		repo:      repo,
		tokens:    tokens,
		publisher: publisher,
		lawyerTTL: cfg.LawyerTokenTTL,
		clientTTL: cfg.ClientTokenTTL,
		logger:    logger,
		now:       time.Now,
	}
}

type RegisterLawyerInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	BarNumber *string
}

type LawyerSession struct {
	Token  string
	Lawyer *models.Lawyer
}

type ClientSession struct {
	Token  string
	Client *models.Client
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) RegisterLawyer(ctx context.Context, in RegisterLawyerInput) (*LawyerSession, error) {
	email := normalizeEmail(in.Email)
	if len(in.Password) < minPasswordLength {
		return nil, NewValidationError("password", "must be at least 8 characters")
	}

	lawyer := &models.Lawyer{
		Email:     email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
	}
	if in.BarNumber != nil {
		if bar := strings.TrimSpace(*in.BarNumber); bar != "" {
			lawyer.BarNumber = &bar
		}
	}

	if _, err := s.repo.GetLawyerByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	lawyer.PasswordHash = hash

	if err := s.repo.CreateLawyer(ctx, lawyer); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	token, _, err := s.tokens.Issue(lawyer.ID, lawyer.Email, auth.RoleLawyer, s.lawyerTTL)
	if err != nil {
		return nil, err
	}

	s.logger.Info("lawyer registered", zap.Uint("lawyer_id", lawyer.ID))
	return &LawyerSession{Token: token, Lawyer: lawyer}, nil
}

func (s *AuthService) LoginLawyer(ctx context.Context, email, password string) (*LawyerSession, error) {
	email = normalizeEmail(email)

	lawyer, err := s.repo.GetLawyerByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		auth.BurnPasswordCheck(password)
		monitoring.LoginsTotal.WithLabelValues(string(auth.RoleLawyer), "rejected").Inc()
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPassword(lawyer.PasswordHash, password) {
		monitoring.LoginsTotal.WithLabelValues(string(auth.RoleLawyer), "rejected").Inc()
		return nil, ErrInvalidCredentials
	}

	token, _, err := s.tokens.Issue(lawyer.ID, lawyer.Email, auth.RoleLawyer, s.lawyerTTL)
	if err != nil {
		return nil, err
	}

	monitoring.LoginsTotal.WithLabelValues(string(auth.RoleLawyer), "ok").Inc()
	s.logger.Info("lawyer login", zap.Uint("lawyer_id", lawyer.ID))
	return &LawyerSession{Token: token, Lawyer: lawyer}, nil
}

// LoginClient authenticates with the exact (email, access code) pair.
func (s *AuthService) LoginClient(ctx context.Context, email, accessCode string) (*ClientSession, error) {
	email = normalizeEmail(email)
	accessCode = strings.TrimSpace(accessCode)
	if accessCode == "" {
		return nil, NewValidationError("accessCode", "is required")
	}

	client, err := s.repo.GetClientByCredentials(ctx, email, accessCode)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			monitoring.LoginsTotal.WithLabelValues(string(auth.RoleClient), "rejected").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	token, _, err := s.tokens.Issue(client.ID, client.Email, auth.RoleClient, s.clientTTL)
	if err != nil {
		return nil, err
	}

	monitoring.LoginsTotal.WithLabelValues(string(auth.RoleClient), "ok").Inc()
	s.logger.Info("client login", zap.Uint("client_id", client.ID))

	now := s.now().UTC()
	doc := clientDocument(client)
	doc.LastLoginAt = &now
	publish(ctx, s.publisher, s.logger, events.ClientLoggedIn, now, doc)

	return &ClientSession{Token: token, Client: client}, nil
}

// Logout revokes the token the session was established with.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.logger.Info("session revoked", zap.String("role", string(claims.Role)), zap.Uint("subject_id", claims.SubjectID()))
	return nil
}
