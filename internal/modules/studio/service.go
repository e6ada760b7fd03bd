package studio

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"studiodesk/internal/domain"
	"studiodesk/internal/pkg/validator"
	"studiodesk/internal/repository"
)

const importBatchSize = 100

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

type Service struct {
	configs ConfigStore
	clients ClientStore
	staff   StaffStore
}

func NewService(configs ConfigStore, clients ClientStore, staff StaffStore) *Service {
	return &Service{configs: configs, clients: clients, staff: staff}
}

// GetConfig returns the stored settings, or the defaults before onboarding.
func (s *Service) GetConfig(ctx context.Context, tc domain.TenantContext) (*ConfigView, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	cfg, err := s.configs.Get(ctx, tc.TenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return &ConfigView{StudioConfig: domain.DefaultStudioConfig(tc.TenantID)}, nil
	}
	if err != nil {
		return nil, err
	}
	return &ConfigView{StudioConfig: cfg, Onboarded: true, PINEnabled: cfg.FinancePINHash != ""}, nil
}

// SaveConfig creates the settings during onboarding and replaces them later.
// The finance PIN is left untouched.
func (s *Service) SaveConfig(ctx context.Context, tc domain.TenantContext, req ConfigRequest) (*ConfigView, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	cfg := &domain.StudioConfig{
		TenantID:      tc.TenantID,
		StudioName:    strings.TrimSpace(req.StudioName),
		TaxRate:       req.TaxRate,
		BufferMinutes: req.BufferMinutes,
		OpenTime:      strings.TrimSpace(req.OpenTime),
		CloseTime:     strings.TrimSpace(req.CloseTime),
		Currency:      strings.ToUpper(strings.TrimSpace(req.Currency)),
	}
	if cfg.StudioName == "" {
		return nil, fmt.Errorf("%w: studio name is required", ErrValidation)
	}
	if cfg.TaxRate.IsNegative() || cfg.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: tax rate must be between 0 and 100", ErrValidation)
	}
	if cfg.BufferMinutes < 0 {
		return nil, fmt.Errorf("%w: buffer cannot be negative", ErrValidation)
	}

	rooms, err := cleanRooms(req.Rooms)
	if err != nil {
		return nil, err
	}
	cfg.Rooms = rooms

	if cfg.OpenTime == "" {
		cfg.OpenTime = domain.DefaultOpenTime
	}
	if cfg.CloseTime == "" {
		cfg.CloseTime = domain.DefaultCloseTime
	}
	open, err := domain.ParseClock(cfg.OpenTime)
	if err != nil {
		return nil, err
	}
	closing, err := domain.ParseClock(cfg.CloseTime)
	if err != nil {
		return nil, err
	}
	if closing <= open {
		return nil, fmt.Errorf("%w: closing time must be after opening time", ErrValidation)
	}

	if err := s.configs.Upsert(ctx, cfg); err != nil {
		return nil, err
	}
	return s.GetConfig(ctx, tc)
}

func cleanRooms(in []string) ([]string, error) {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" {
			return nil, fmt.Errorf("%w: room name cannot be empty", ErrValidation)
		}
		if seen[r] {
			return nil, fmt.Errorf("%w: room %q listed twice", ErrValidation, r)
		}
		seen[r] = true
		out = append(out, r)
	}
	return out, nil
}

// SetFinancePIN stores the bcrypt hash of pin. An empty pin removes the
// protection.
func (s *Service) SetFinancePIN(ctx context.Context, tc domain.TenantContext, pin string) error {
	if err := tc.Validate(); err != nil {
		return err
	}

	hash := ""
	if pin != "" {
		if !pinPattern.MatchString(pin) {
			return ErrInvalidPIN
		}
		b, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		hash = string(b)
	}

	err := s.configs.SetPINHash(ctx, tc.TenantID, hash)
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	// not onboarded yet: store the defaults so the PIN has a row to live on
	if err := s.configs.Upsert(ctx, domain.DefaultStudioConfig(tc.TenantID)); err != nil {
		return err
	}
	return s.configs.SetPINHash(ctx, tc.TenantID, hash)
}

// VerifyFinancePIN implements middleware.PINVerifier.
func (s *Service) VerifyFinancePIN(ctx context.Context, tenantID, pin string) (bool, bool, error) {
	cfg, err := s.configs.Get(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, true, nil
	}
	if err != nil {
		return false, false, err
	}
	if cfg.FinancePINHash == "" {
		return false, true, nil
	}
	if pin == "" {
		return true, false, nil
	}
	return true, bcrypt.CompareHashAndPassword([]byte(cfg.FinancePINHash), []byte(pin)) == nil, nil
}

func (s *Service) CreateClient(ctx context.Context, tc domain.TenantContext, req ClientRequest) (*domain.Client, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	c, err := newClient(tc.TenantID, req)
	if err != nil {
		return nil, err
	}
	if err := s.clients.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) GetClient(ctx context.Context, tc domain.TenantContext, id string) (*domain.Client, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return s.clients.GetByID(ctx, tc.TenantID, id)
}

func (s *Service) ListClients(ctx context.Context, tc domain.TenantContext, search string) ([]domain.Client, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return s.clients.List(ctx, tc.TenantID, search)
}

func (s *Service) UpdateClient(ctx context.Context, tc domain.TenantContext, id string, req ClientRequest) (*domain.Client, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.clients.GetByID(ctx, tc.TenantID, id)
	if err != nil {
		return nil, err
	}
	c, err := newClient(tc.TenantID, req)
	if err != nil {
		return nil, err
	}
	c.ID = existing.ID
	c.CreatedAt = existing.CreatedAt
	if err := s.clients.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ImportClients adds a contact list in batches. Rows that fail validation are
// reported by index; rows whose phone is already on file are skipped.
func (s *Service) ImportClients(ctx context.Context, tc domain.TenantContext, rows []ClientRequest) (*ImportResult, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	res := &ImportResult{Invalid: map[int]string{}}
	batch := make([]domain.Client, 0, len(rows))
	phones := make([]string, 0, len(rows))
	for i, row := range rows {
		c, err := newClient(tc.TenantID, row)
		if err != nil {
			res.Invalid[i] = err.Error()
			continue
		}
		batch = append(batch, *c)
		if c.Phone != "" {
			phones = append(phones, c.Phone)
		}
	}

	known, err := s.clients.ExistingPhones(ctx, tc.TenantID, phones)
	if err != nil {
		return nil, err
	}

	fresh := batch[:0]
	for _, c := range batch {
		if c.Phone != "" && known[c.Phone] {
			res.Duplicate++
			continue
		}
		if c.Phone != "" {
			known[c.Phone] = true
		}
		fresh = append(fresh, c)
	}

	if err := s.clients.CreateBatch(ctx, fresh, importBatchSize); err != nil {
		return nil, err
	}
	res.Created = len(fresh)
	if len(res.Invalid) == 0 {
		res.Invalid = nil
	}
	return res, nil
}

func newClient(tenantID string, req ClientRequest) (*domain.Client, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	if errs := validator.Validate(req); errs != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, errs)
	}
	return &domain.Client{
		TenantID: tenantID,
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Notes:    req.Notes,
	}, nil
}

func (s *Service) CreateStaff(ctx context.Context, tc domain.TenantContext, req StaffRequest) (*domain.Staff, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	role := req.Role
	if role == "" {
		role = domain.StaffPhotographer
	}
	st := &domain.Staff{TenantID: tc.TenantID, Name: name, Role: role, Active: true}
	if err := s.staff.Create(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) ListStaff(ctx context.Context, tc domain.TenantContext, activeOnly bool) ([]domain.Staff, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return s.staff.List(ctx, tc.TenantID, activeOnly)
}

// DeactivateStaff hides a team member from new assignments. Past bookings
// keep their reference.
func (s *Service) DeactivateStaff(ctx context.Context, tc domain.TenantContext, id string) error {
	if err := tc.Validate(); err != nil {
		return err
	}
	return s.staff.SetActive(ctx, tc.TenantID, id, false)
}
