package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"
	"os"
	"path/filepath"
)

const (
	bootstrapAdminUsername = "admin"
	bootstrapAdminEmail    = "admin@localhost"
)

// BootstrapAdmin creates an initial admin user when none exists.
// It is idempotent: if an admin already exists, it does nothing. When the
// admin username or email is held by a regular user it logs a warning and
// creates nothing.
func BootstrapAdmin(ctx context.Context, repo UserRepository, cfg Config) error {
	if !cfg.BootstrapAdminEnabled {
		return nil
	}

	has, err := repo.HasAdmin(ctx)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	password, err := generatePassword(32)
	if err != nil {
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	if _, err := repo.Create(ctx, UserRecord{
		Username:     bootstrapAdminUsername,
		Email:        bootstrapAdminEmail,
		PasswordHash: hash,
		Role:         RoleAdmin,
	}); err != nil {
		if errors.Is(err, ErrConflict) {
			log.Printf("WARNING: skipping initial admin: %v; promote an existing user to ADMIN instead", err)
			return nil
		}
		return err
	}

	if cfg.InitialAdminPasswordPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.InitialAdminPasswordPath), 0o700); err != nil {
			return err
		}
		if err := os.WriteFile(cfg.InitialAdminPasswordPath, []byte(password+"\n"), 0o600); err != nil {
			return err
		}
		log.Printf("initial admin created; credentials written to %s", cfg.InitialAdminPasswordPath)
	} else {
		log.Printf("initial admin created username=%s password=%s", bootstrapAdminUsername, password)
	}

	return nil
}

func generatePassword(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("password length must be positive")
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}
