package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SetPaymentLogVerified flags the payment log for a license as
// admin-verified. Called alongside MarkLicenseVerified.
func (r *Repository) SetPaymentLogVerified(ctx context.Context, licenseID string) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE payment_logs SET admin_verified = TRUE WHERE license_id = $1
	`, licenseID)
	if err != nil {
		return fmt.Errorf("failed to set payment log verified: %w", err)
	}
	return nil
}

// SetPaymentLogStatus records a lifecycle transition on the payment
// log ("completed" on activation, "rejected" on rejection).
func (r *Repository) SetPaymentLogStatus(ctx context.Context, licenseID, status string) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE payment_logs SET status = $2 WHERE license_id = $1
	`, licenseID, status)
	if err != nil {
		return fmt.Errorf("failed to set payment log status: %w", err)
	}
	return nil
}

// ListPaymentLogsByLicense returns the payment trail for a license,
// oldest first.
func (r *Repository) ListPaymentLogsByLicense(ctx context.Context, licenseID string) ([]PaymentLog, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, user_id, license_id, payment_reference, amount, status, admin_verified,
			created_at, updated_at
		FROM payment_logs
		WHERE license_id = $1
		ORDER BY created_at ASC
	`, licenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment logs: %w", err)
	}
	defer rows.Close()

	var logs []PaymentLog
	for rows.Next() {
		var p PaymentLog
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.LicenseID, &p.PaymentReference, &p.Amount,
			&p.Status, &p.AdminVerified, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment log: %w", err)
		}
		logs = append(logs, p)
	}
	return logs, rows.Err()
}

// GetPaymentLogByReference retrieves a payment log by reference.
func (r *Repository) GetPaymentLogByReference(ctx context.Context, reference string) (*PaymentLog, error) {
	var p PaymentLog
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, user_id, license_id, payment_reference, amount, status, admin_verified,
			created_at, updated_at
		FROM payment_logs
		WHERE payment_reference = $1
	`, reference).Scan(
		&p.ID, &p.UserID, &p.LicenseID, &p.PaymentReference, &p.Amount,
		&p.Status, &p.AdminVerified, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment log: %w", err)
	}
	return &p, nil
}
