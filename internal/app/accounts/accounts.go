// Package accounts registers and authenticates citizens and administrators.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/greencredits/greencredits/internal/domain"
	"github.com/greencredits/greencredits/internal/logger"
)

// DefaultOrgCodes are the organization codes that admit administrators when
// none are configured.
var DefaultOrgCodes = []string{"MUNI2024", "ADMIN123", "GREENCITY"}

// LedgerOpener opens a credit account for a new citizen.
type LedgerOpener interface {
	Account(ctx context.Context, userID string) (domain.LedgerAccount, error)
}

// Config tunes registration.
type Config struct {
	OrgCodes   []string
	BcryptCost int
	Now        func() time.Time
}

// Service handles signup and login.
type Service struct {
	users    domain.UserStore
	ledger   LedgerOpener
	orgCodes map[string]bool
	cost     int
	now      func() time.Time
	log      *zap.Logger
}

// NewService creates an account service. ledger may be nil.
func NewService(users domain.UserStore, ledger LedgerOpener, cfg Config, log *zap.Logger) *Service {
	codes := cfg.OrgCodes
	if len(codes) == 0 {
		codes = DefaultOrgCodes
	}
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		users:    users,
		ledger:   ledger,
		orgCodes: set,
		cost:     cfg.BcryptCost,
		now:      cfg.Now,
		log:      logger.OrDefault(log).Named("accounts"),
	}
}

// Signup registers a citizen and opens their ledger account.
func (s *Service) Signup(ctx context.Context, name, email, password string) (domain.User, error) {
	u, err := s.register(ctx, name, email, password, domain.RoleCitizen)
	if err != nil {
		return domain.User{}, err
	}
	if s.ledger != nil {
		if _, err := s.ledger.Account(ctx, u.ID); err != nil {
			return domain.User{}, fmt.Errorf("open ledger: %w", err)
		}
	}
	return u, nil
}

// AdminSignup registers an administrator holding a valid organization code.
func (s *Service) AdminSignup(ctx context.Context, name, email, password, orgCode string) (domain.User, error) {
	if strings.TrimSpace(orgCode) == "" {
		return domain.User{}, domain.ErrMissingFields
	}
	if !s.orgCodes[strings.TrimSpace(orgCode)] {
		return domain.User{}, domain.ErrInvalidOrgCode
	}
	return s.register(ctx, name, email, password, domain.RoleAdmin)
}

// Login checks credentials for a user of the given role. Unknown email,
// wrong password and wrong role are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string, role domain.Role) (domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, domain.ErrMissingFields
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if u.Role != role {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return u, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (domain.User, error) {
	return s.users.GetUser(ctx, id)
}

func (s *Service) register(ctx context.Context, name, email, password string, role domain.Role) (domain.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return domain.User{}, domain.ErrMissingFields
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.now(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	s.log.Info("user registered", zap.String("user_id", u.ID), zap.String("role", string(role)))
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
