package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const licenseColumns = `id, user_id, license_key, plan, payment_reference, amount, status,
	admin_verified, email_sent, activated_at, expires_at, verified_at,
	COALESCE(admin_notes, ''), created_at, updated_at`

func scanLicense(row pgx.Row, l *License) error {
	return row.Scan(
		&l.ID, &l.UserID, &l.LicenseKey, &l.Plan, &l.PaymentReference, &l.Amount,
		&l.Status, &l.AdminVerified, &l.EmailSent, &l.ActivatedAt, &l.ExpiresAt,
		&l.VerifiedAt, &l.AdminNotes, &l.CreatedAt, &l.UpdatedAt,
	)
}

// CreateLicenseWithLog inserts a license and its payment-log row in one
// transaction, so a store failure can never leave only one of the two
// writes applied. Unique-constraint violations (reused payment
// reference, key collision) surface via IsUniqueViolation.
func (r *Repository) CreateLicenseWithLog(ctx context.Context, license *License, plog *PaymentLog) error {
	if license.ID == "" {
		license.ID = uuid.New().String()
	}
	if plog.ID == "" {
		plog.ID = uuid.New().String()
	}
	plog.LicenseID = license.ID

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO licenses (id, user_id, license_key, plan, payment_reference, amount,
			status, admin_verified, email_sent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, FALSE)
		RETURNING created_at, updated_at
	`,
		license.ID, license.UserID, license.LicenseKey, license.Plan,
		license.PaymentReference, license.Amount, license.Status,
	).Scan(&license.CreatedAt, &license.UpdatedAt)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO payment_logs (id, user_id, license_id, payment_reference, amount, status, admin_verified)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING created_at, updated_at
	`,
		plog.ID, plog.UserID, plog.LicenseID, plog.PaymentReference, plog.Amount, plog.Status,
	).Scan(&plog.CreatedAt, &plog.UpdatedAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetLicenseByID retrieves a license by ID
func (r *Repository) GetLicenseByID(ctx context.Context, id string) (*License, error) {
	query := fmt.Sprintf(`SELECT %s FROM licenses WHERE id = $1`, licenseColumns)

	var license License
	err := scanLicense(r.db.Pool.QueryRow(ctx, query, id), &license)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get license by id: %w", err)
	}
	return &license, nil
}

// GetLicenseByPaymentReference retrieves a license by its payment
// reference. Used for the fast-path duplicate check before insert; the
// UNIQUE constraint remains the authoritative guard.
func (r *Repository) GetLicenseByPaymentReference(ctx context.Context, reference string) (*License, error) {
	query := fmt.Sprintf(`SELECT %s FROM licenses WHERE payment_reference = $1`, licenseColumns)

	var license License
	err := scanLicense(r.db.Pool.QueryRow(ctx, query, reference), &license)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get license by payment reference: %w", err)
	}
	return &license, nil
}

// ListLicensesByUser retrieves all licenses owned by a user, newest
// first.
func (r *Repository) ListLicensesByUser(ctx context.Context, userID string) ([]License, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM licenses
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, licenseColumns)

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}
	defer rows.Close()

	var licenses []License
	for rows.Next() {
		var l License
		if err := scanLicense(rows, &l); err != nil {
			return nil, fmt.Errorf("failed to scan license: %w", err)
		}
		licenses = append(licenses, l)
	}
	return licenses, rows.Err()
}

const adminLicenseColumns = `l.id, l.user_id, l.license_key, l.plan, l.payment_reference, l.amount,
	l.status, l.admin_verified, l.email_sent, l.activated_at, l.expires_at,
	l.verified_at, COALESCE(l.admin_notes, ''), l.created_at, l.updated_at,
	u.name, u.email, COALESCE(u.phone, '')`

func scanAdminLicense(row pgx.Row, l *AdminLicense) error {
	return row.Scan(
		&l.ID, &l.UserID, &l.LicenseKey, &l.Plan, &l.PaymentReference, &l.Amount,
		&l.Status, &l.AdminVerified, &l.EmailSent, &l.ActivatedAt, &l.ExpiresAt,
		&l.VerifiedAt, &l.AdminNotes, &l.CreatedAt, &l.UpdatedAt,
		&l.OwnerName, &l.OwnerEmail, &l.OwnerPhone,
	)
}

// GetAdminLicense retrieves a license joined with its owner.
func (r *Repository) GetAdminLicense(ctx context.Context, id string) (*AdminLicense, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM licenses l
		JOIN users u ON u.id = l.user_id
		WHERE l.id = $1
	`, adminLicenseColumns)

	var license AdminLicense
	err := scanAdminLicense(r.db.Pool.QueryRow(ctx, query, id), &license)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get license with owner: %w", err)
	}
	return &license, nil
}

// ListPendingLicenses retrieves the admin verification queue: licenses
// awaiting a verify decision, newest first.
func (r *Repository) ListPendingLicenses(ctx context.Context) ([]AdminLicense, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM licenses l
		JOIN users u ON u.id = l.user_id
		WHERE l.status = 'pending_verification' AND l.admin_verified = FALSE
		ORDER BY l.created_at DESC
	`, adminLicenseColumns)

	return r.queryAdminLicenses(ctx, query)
}

// ListAllLicenses retrieves every license with its owner, unmasked,
// newest first.
func (r *Repository) ListAllLicenses(ctx context.Context) ([]AdminLicense, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM licenses l
		JOIN users u ON u.id = l.user_id
		ORDER BY l.created_at DESC
	`, adminLicenseColumns)

	return r.queryAdminLicenses(ctx, query)
}

func (r *Repository) queryAdminLicenses(ctx context.Context, query string, args ...interface{}) ([]AdminLicense, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}
	defer rows.Close()

	var licenses []AdminLicense
	for rows.Next() {
		var l AdminLicense
		if err := scanAdminLicense(rows, &l); err != nil {
			return nil, fmt.Errorf("failed to scan license: %w", err)
		}
		licenses = append(licenses, l)
	}
	return licenses, rows.Err()
}

// MarkLicenseVerified records an admin's payment confirmation. The
// update is conditional on the license still being unverified and
// pending, so two concurrent verify calls cannot both succeed; the
// returned bool reports whether this call won. Expiry and activation
// instants are set here, exactly once, and never recomputed.
func (r *Repository) MarkLicenseVerified(ctx context.Context, id, notes string, activatedAt, expiresAt time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE licenses
		SET admin_verified = TRUE,
			verified_at = $2,
			activated_at = $2,
			expires_at = $3,
			admin_notes = $4
		WHERE id = $1 AND admin_verified = FALSE AND status = 'pending_verification'
	`, id, activatedAt, expiresAt, notes)
	if err != nil {
		return false, fmt.Errorf("failed to mark license verified: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkLicenseActivated flips a verified license to active and records
// that the license email went out, in a single conditional update.
// It only succeeds for a verified, unsent, pending license, which is
// what makes the activation email at-most-once under retries.
func (r *Repository) MarkLicenseActivated(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE licenses
		SET status = 'active', email_sent = TRUE
		WHERE id = $1 AND admin_verified = TRUE AND email_sent = FALSE
			AND status = 'pending_verification'
	`, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark license activated: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkLicenseRejected moves a non-terminal license to rejected. The
// admin_verified and email_sent flags are left untouched so the audit
// trail keeps the history of a verified-then-rejected license.
func (r *Repository) MarkLicenseRejected(ctx context.Context, id, reason string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE licenses
		SET status = 'rejected', admin_notes = $2
		WHERE id = $1 AND status NOT IN ('active', 'rejected')
	`, id, reason)
	if err != nil {
		return false, fmt.Errorf("failed to mark license rejected: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteLicense hard-deletes a license, bypassing the lifecycle.
// Payment logs cascade. Admin escape hatch for fraudulent records.
func (r *Repository) DeleteLicense(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM licenses WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete license: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
