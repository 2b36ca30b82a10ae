package auth

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"snappy-license-server/internal/database"
)

// SeedAdminUser ensures an admin account exists with the configured
// credentials. It creates the account if missing, resets the password
// if it no longer matches, and repairs the admin flag.
func SeedAdminUser(ctx context.Context, db *database.DB, email, password string, logger zerolog.Logger) error {
	if email == "" || password == "" {
		logger.Warn().Msg("Admin seeding skipped: no credentials configured")
		return nil
	}

	repo := database.NewRepository(db)

	user, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check for admin user: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	if user == nil {
		adminUser := &database.User{
			Email:        email,
			PasswordHash: string(hashedPassword),
			Name:         "Administrator",
			IsAdmin:      true,
		}

		if err := repo.CreateUser(ctx, adminUser); err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		logger.Info().Str("user_id", adminUser.ID).Str("email", email).Msg("Admin user created")
		return nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if err := repo.UpdateUserPassword(ctx, user.ID, string(hashedPassword)); err != nil {
			return fmt.Errorf("failed to update admin password: %w", err)
		}
		logger.Info().Str("email", email).Msg("Admin password updated")
	}

	if !user.IsAdmin {
		if err := repo.SetUserAdmin(ctx, user.ID, true); err != nil {
			return fmt.Errorf("failed to update admin flag: %w", err)
		}
		logger.Info().Str("email", email).Msg("Admin flag restored")
	}

	return nil
}
