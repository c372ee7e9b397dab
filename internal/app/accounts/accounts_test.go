package accounts

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/greencredits/greencredits/internal/app/rewards"
	"github.com/greencredits/greencredits/internal/domain"
	"github.com/greencredits/greencredits/internal/infra/memstore"
)

func newTestService() (*Service, *memstore.Store) {
	store := memstore.New()
	engine := rewards.NewEngine(store, rewards.DefaultConfig(), nil)
	return NewService(store, engine, Config{BcryptCost: bcrypt.MinCost}, nil), store
}

func TestSignup(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	u, err := svc.Signup(ctx, " Asha ", "Asha@Example.com", "s3cret")
	if err != nil {
		t.Fatalf("Signup() error: %v", err)
	}
	if u.ID == "" || u.Name != "Asha" || u.Email != "asha@example.com" || u.Role != domain.RoleCitizen {
		t.Errorf("user = %+v", u)
	}
	if u.PasswordHash == "s3cret" || u.PasswordHash == "" {
		t.Error("password stored in clear")
	}
	if _, err := store.GetAccount(ctx, u.ID); err != nil {
		t.Errorf("ledger account not opened: %v", err)
	}

	if _, err := svc.Signup(ctx, "Other", "asha@example.com", "x"); !errors.Is(err, domain.ErrUserExists) {
		t.Errorf("duplicate Signup() err = %v, want ErrUserExists", err)
	}
}

func TestSignup_MissingFields(t *testing.T) {
	svc, _ := newTestService()
	tests := []struct{ name, email, password string }{
		{"", "a@b.c", "pw"},
		{"A", " ", "pw"},
		{"A", "a@b.c", ""},
	}
	for _, tt := range tests {
		if _, err := svc.Signup(context.Background(), tt.name, tt.email, tt.password); !errors.Is(err, domain.ErrMissingFields) {
			t.Errorf("Signup(%q, %q, %q) err = %v, want ErrMissingFields", tt.name, tt.email, tt.password, err)
		}
	}
}

func TestAdminSignup(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.AdminSignup(ctx, "Ravi", "ravi@city.gov", "pw", "NOPE"); !errors.Is(err, domain.ErrInvalidOrgCode) {
		t.Errorf("bad org code err = %v, want ErrInvalidOrgCode", err)
	}
	if _, err := svc.AdminSignup(ctx, "Ravi", "ravi@city.gov", "pw", ""); !errors.Is(err, domain.ErrMissingFields) {
		t.Errorf("empty org code err = %v, want ErrMissingFields", err)
	}

	u, err := svc.AdminSignup(ctx, "Ravi", "ravi@city.gov", "pw", "GREENCITY")
	if err != nil {
		t.Fatalf("AdminSignup() error: %v", err)
	}
	if !u.IsAdmin() {
		t.Errorf("role = %q, want admin", u.Role)
	}
}

func TestAdminSignup_ConfiguredCodes(t *testing.T) {
	store := memstore.New()
	svc := NewService(store, nil, Config{OrgCodes: []string{"CITY42"}, BcryptCost: bcrypt.MinCost}, nil)

	if _, err := svc.AdminSignup(context.Background(), "R", "r@x.y", "pw", "MUNI2024"); !errors.Is(err, domain.ErrInvalidOrgCode) {
		t.Errorf("default code accepted with custom list: %v", err)
	}
	if _, err := svc.AdminSignup(context.Background(), "R", "r@x.y", "pw", "CITY42"); err != nil {
		t.Errorf("configured code rejected: %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	citizen, _ := svc.Signup(ctx, "Asha", "asha@example.com", "s3cret")
	svc.AdminSignup(ctx, "Ravi", "ravi@city.gov", "adminpw", "MUNI2024")

	got, err := svc.Login(ctx, " ASHA@example.com", "s3cret", domain.RoleCitizen)
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if got.ID != citizen.ID {
		t.Errorf("Login() returned %q, want %q", got.ID, citizen.ID)
	}

	tests := []struct {
		name     string
		email    string
		password string
		role     domain.Role
		want     error
	}{
		{"wrong password", "asha@example.com", "nope", domain.RoleCitizen, domain.ErrInvalidCredentials},
		{"unknown email", "who@example.com", "s3cret", domain.RoleCitizen, domain.ErrInvalidCredentials},
		{"citizen on admin login", "asha@example.com", "s3cret", domain.RoleAdmin, domain.ErrInvalidCredentials},
		{"admin on citizen login", "ravi@city.gov", "adminpw", domain.RoleCitizen, domain.ErrInvalidCredentials},
		{"missing password", "asha@example.com", "", domain.RoleCitizen, domain.ErrMissingFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Login(ctx, tt.email, tt.password, tt.role); !errors.Is(err, tt.want) {
				t.Errorf("Login() err = %v, want %v", err, tt.want)
			}
		})
	}
}
