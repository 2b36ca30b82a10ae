package license

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"snappy-license-server/internal/database"
	"snappy-license-server/internal/events"
)

// Store is the persistence surface the license pipeline needs. The
// pgx-backed *database.Repository satisfies it in production.
type Store interface {
	CreateLicenseWithLog(ctx context.Context, license *database.License, plog *database.PaymentLog) error
	GetLicenseByID(ctx context.Context, id string) (*database.License, error)
	GetLicenseByPaymentReference(ctx context.Context, reference string) (*database.License, error)
	GetAdminLicense(ctx context.Context, id string) (*database.AdminLicense, error)
	ListLicensesByUser(ctx context.Context, userID string) ([]database.License, error)
	ListPendingLicenses(ctx context.Context) ([]database.AdminLicense, error)
	ListAllLicenses(ctx context.Context) ([]database.AdminLicense, error)
	MarkLicenseVerified(ctx context.Context, id, notes string, activatedAt, expiresAt time.Time) (bool, error)
	MarkLicenseActivated(ctx context.Context, id string) (bool, error)
	MarkLicenseRejected(ctx context.Context, id, reason string) (bool, error)
	DeleteLicense(ctx context.Context, id string) (bool, error)
	SetPaymentLogVerified(ctx context.Context, licenseID string) error
	SetPaymentLogStatus(ctx context.Context, licenseID, status string) error
	IsUniqueViolation(err error) bool
}

// Mailer delivers the activation email carrying the real license key.
type Mailer interface {
	SendLicenseEmail(ctx context.Context, toEmail, toName, licenseKey, plan string, expiresAt time.Time) error
}

// Service implements the payment verification and activation pipeline.
type Service struct {
	store   Store
	mailer  Mailer
	bus     *events.EventBus
	pricing PlanPricing
	logger  zerolog.Logger
	now     func() time.Time
}

// NewService creates a license service. bus may be nil in tests.
func NewService(store Store, mailer Mailer, bus *events.EventBus, pricing PlanPricing, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		mailer:  mailer,
		bus:     bus,
		pricing: pricing,
		logger:  logger.With().Str("component", "license_service").Logger(),
		now:     time.Now,
	}
}

// UserLicenseView is the owner-facing projection of a license. The key
// is masked until the payment is admin-verified; daysRemaining and
// isActive are derived from current time on every read.
type UserLicenseView struct {
	ID               string     `json:"id"`
	LicenseKey       string     `json:"license_key"`
	Plan             string     `json:"plan"`
	PaymentReference string     `json:"payment_reference"`
	Amount           int64      `json:"amount"`
	Status           string     `json:"status"`
	ActivatedAt      *time.Time `json:"activated_at,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	DaysRemaining    int        `json:"days_remaining"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Submit records a manual payment claim and mints a pending license.
// The generated key is stored immediately but stays hidden from the
// owner until an admin verifies the payment.
func (s *Service) Submit(ctx context.Context, userID, planName, paymentReference string) (*UserLicenseView, error) {
	plan, ok := ParsePlan(planName)
	if !ok {
		return nil, ErrInvalidPlan
	}

	paymentReference = strings.TrimSpace(paymentReference)
	if paymentReference == "" {
		return nil, ErrMissingReference
	}

	// Fast-path duplicate check; the UNIQUE constraint below is the
	// authoritative guard under concurrency.
	existing, err := s.store.GetLicenseByPaymentReference(ctx, paymentReference)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateReference
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	amount := s.pricing.Amount(plan)
	lic := &database.License{
		UserID:           userID,
		LicenseKey:       key,
		Plan:             string(plan),
		PaymentReference: paymentReference,
		Amount:           amount,
		Status:           database.StatusPendingVerification,
	}
	plog := &database.PaymentLog{
		UserID:           userID,
		PaymentReference: paymentReference,
		Amount:           amount,
		Status:           "pending_verification",
	}

	if err := s.store.CreateLicenseWithLog(ctx, lic, plog); err != nil {
		if s.store.IsUniqueViolation(err) {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}

	s.logger.Info().
		Str("license_id", lic.ID).
		Str("user_id", userID).
		Str("plan", string(plan)).
		Str("payment_reference", paymentReference).
		Msg("License submitted for verification")

	if s.bus != nil {
		s.bus.PublishLicenseSubmitted(lic.ID, userID, string(plan), paymentReference, amount)
	}

	return s.projectForOwner(lic), nil
}

// Verify records the admin's confirmation that the referenced payment
// arrived. It stamps activation and expiry exactly once; the license
// stays pending_verification and no email goes out until a separate
// send-activation call.
func (s *Service) Verify(ctx context.Context, licenseID, notes string) (*database.AdminLicense, error) {
	activatedAt := s.now().UTC()
	expiresAt := CalculateExpiry(activatedAt)

	won, err := s.store.MarkLicenseVerified(ctx, licenseID, notes, activatedAt, expiresAt)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, s.classifyVerifyConflict(ctx, licenseID)
	}

	if err := s.store.SetPaymentLogVerified(ctx, licenseID); err != nil {
		s.logger.Error().Err(err).Str("license_id", licenseID).Msg("Failed to flag payment log verified")
	}

	lic, err := s.store.GetAdminLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	if lic == nil {
		return nil, ErrLicenseNotFound
	}

	s.logger.Info().
		Str("license_id", licenseID).
		Time("expires_at", expiresAt).
		Msg("License payment verified")

	if s.bus != nil {
		s.bus.PublishLicenseVerified(lic.ID, lic.UserID, expiresAt)
	}

	return lic, nil
}

func (s *Service) classifyVerifyConflict(ctx context.Context, licenseID string) error {
	lic, err := s.store.GetLicenseByID(ctx, licenseID)
	if err != nil {
		return err
	}
	if lic == nil {
		return ErrLicenseNotFound
	}
	switch lic.State() {
	case database.StateRejected:
		return ErrLicenseRejected
	case database.StateActive:
		return ErrAlreadyActive
	default:
		return ErrAlreadyVerified
	}
}

// SendActivation emails the real license key to the owner and flips
// the license to active. The final conditional update is what bounds
// delivery at one email: a concurrent or repeated call loses the
// update and reports the conflict. A mailer failure leaves email_sent
// false so the admin can retry.
func (s *Service) SendActivation(ctx context.Context, licenseID string) (*database.AdminLicense, error) {
	lic, err := s.store.GetAdminLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	if lic == nil {
		return nil, ErrLicenseNotFound
	}

	switch lic.State() {
	case database.StateRejected:
		return nil, ErrLicenseRejected
	case database.StatePendingVerification:
		return nil, ErrNotYetVerified
	case database.StateActive:
		return nil, ErrAlreadySent
	}

	if lic.ExpiresAt == nil {
		// Verified licenses always carry an expiry; treat a missing
		// one as corrupt rather than inventing a new window here.
		return nil, ErrNotYetVerified
	}

	if err := s.mailer.SendLicenseEmail(ctx, lic.OwnerEmail, lic.OwnerName, lic.LicenseKey, lic.Plan, *lic.ExpiresAt); err != nil {
		s.logger.Error().Err(err).
			Str("license_id", licenseID).
			Str("email", lic.OwnerEmail).
			Msg("License email delivery failed")
		return nil, ErrDeliveryFailed
	}

	won, err := s.store.MarkLicenseActivated(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	if !won {
		// Another call raced past the precondition read and already
		// sent. Ours is the duplicate; report the conflict.
		return nil, ErrAlreadySent
	}

	if err := s.store.SetPaymentLogStatus(ctx, licenseID, "completed"); err != nil {
		s.logger.Error().Err(err).Str("license_id", licenseID).Msg("Failed to complete payment log")
	}

	lic.Status = database.StatusActive
	lic.EmailSent = true

	s.logger.Info().
		Str("license_id", licenseID).
		Str("email", lic.OwnerEmail).
		Msg("License activated and key delivered")

	if s.bus != nil {
		s.bus.PublishLicenseActivated(lic.ID, lic.UserID, lic.OwnerEmail)
	}

	return lic, nil
}

// Reject closes a license before activation. Active and rejected
// licenses are terminal and cannot be rejected (again).
func (s *Service) Reject(ctx context.Context, licenseID, reason string) (*database.AdminLicense, error) {
	won, err := s.store.MarkLicenseRejected(ctx, licenseID, reason)
	if err != nil {
		return nil, err
	}
	if !won {
		lic, err := s.store.GetLicenseByID(ctx, licenseID)
		if err != nil {
			return nil, err
		}
		if lic == nil {
			return nil, ErrLicenseNotFound
		}
		if lic.State() == database.StateActive {
			return nil, ErrAlreadyActive
		}
		return nil, ErrLicenseRejected
	}

	if err := s.store.SetPaymentLogStatus(ctx, licenseID, "rejected"); err != nil {
		s.logger.Error().Err(err).Str("license_id", licenseID).Msg("Failed to reject payment log")
	}

	lic, err := s.store.GetAdminLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	if lic == nil {
		return nil, ErrLicenseNotFound
	}

	s.logger.Info().
		Str("license_id", licenseID).
		Str("reason", reason).
		Msg("License rejected")

	if s.bus != nil {
		s.bus.PublishLicenseRejected(lic.ID, lic.UserID, reason)
	}

	return lic, nil
}

// Purge hard-deletes a license and its payment trail, bypassing the
// lifecycle entirely. Admin escape hatch for fraudulent records.
func (s *Service) Purge(ctx context.Context, licenseID string) error {
	deleted, err := s.store.DeleteLicense(ctx, licenseID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrLicenseNotFound
	}

	s.logger.Warn().Str("license_id", licenseID).Msg("License hard-deleted")

	if s.bus != nil {
		s.bus.PublishLicenseDeleted(licenseID)
	}
	return nil
}

// ListForOwner returns the owner-facing projection of a user's
// licenses, newest first, with unverified keys masked.
func (s *Service) ListForOwner(ctx context.Context, userID string) ([]UserLicenseView, error) {
	licenses, err := s.store.ListLicensesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]UserLicenseView, 0, len(licenses))
	for i := range licenses {
		views = append(views, *s.projectForOwner(&licenses[i]))
	}
	return views, nil
}

// GetForOwner returns one of the user's licenses, masked per the
// disclosure rules. A license owned by someone else reads as not found
// so the endpoint never confirms another user's record exists.
func (s *Service) GetForOwner(ctx context.Context, userID, licenseID string) (*UserLicenseView, error) {
	lic, err := s.store.GetLicenseByID(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	if lic == nil || lic.UserID != userID {
		return nil, ErrLicenseNotFound
	}
	return s.projectForOwner(lic), nil
}

// ListPending returns the admin verification queue.
func (s *Service) ListPending(ctx context.Context) ([]database.AdminLicense, error) {
	return s.store.ListPendingLicenses(ctx)
}

// ListAll returns every license, unmasked, for admins.
func (s *Service) ListAll(ctx context.Context) ([]database.AdminLicense, error) {
	return s.store.ListAllLicenses(ctx)
}

// GetForAdmin returns a single unmasked license with its owner.
func (s *Service) GetForAdmin(ctx context.Context, licenseID string) (*database.AdminLicense, error) {
	lic, err := s.store.GetAdminLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	if lic == nil {
		return nil, ErrLicenseNotFound
	}
	return lic, nil
}

func (s *Service) projectForOwner(l *database.License) *UserLicenseView {
	view := &UserLicenseView{
		ID:               l.ID,
		LicenseKey:       MaskedKey,
		Plan:             l.Plan,
		PaymentReference: l.PaymentReference,
		Amount:           l.Amount,
		Status:           string(l.Status),
		ActivatedAt:      l.ActivatedAt,
		ExpiresAt:        l.ExpiresAt,
		CreatedAt:        l.CreatedAt,
	}

	// The real key is disclosed only after admin verification.
	if l.AdminVerified {
		view.LicenseKey = l.LicenseKey
	}

	now := s.now().UTC()
	if l.ExpiresAt != nil {
		view.DaysRemaining = DaysRemaining(*l.ExpiresAt, now)
		view.IsActive = l.Status == database.StatusActive && l.ExpiresAt.After(now)
	}
	return view
}
