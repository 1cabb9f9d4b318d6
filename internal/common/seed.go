package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/store"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// SeedAccount is one node of a referral tree; Referrals were referred by it.
type SeedAccount struct {
	Name      string        `yaml:"name"`
	Email     string        `yaml:"email"`
	Referrals []SeedAccount `yaml:"referrals"`
}

type SeedConfig struct {
	Accounts []SeedAccount `yaml:"accounts"`
}

// AccountRegistrar creates accounts under an optional referrer.
type AccountRegistrar interface {
	CreateAccount(ctx context.Context, name, email, referredBy string) (*models.Account, error)
}

func LoadReferralTree(seedFile string) ([]SeedAccount, error) {
	var seedPath string
	if filepath.IsAbs(seedFile) {
		seedPath = seedFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		seedPath = filepath.Join(wd, seedFile)
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", seedFile, err)
	}

	return ParseReferralTree(data)
}

func ParseReferralTree(data []byte) ([]SeedAccount, error) {
	var config SeedConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse referral tree: %w", err)
	}

	seen := make(map[string]bool)
	if err := validateSeedAccounts(config.Accounts, "accounts", seen); err != nil {
		return nil, err
	}
	return config.Accounts, nil
}

func validateSeedAccounts(accounts []SeedAccount, path string, seen map[string]bool) error {
	for i, account := range accounts {
		at := fmt.Sprintf("%s[%d]", path, i)
		if strings.TrimSpace(account.Name) == "" {
			return fmt.Errorf("account at %s missing name", at)
		}
		email := strings.ToLower(strings.TrimSpace(account.Email))
		if email == "" {
			return fmt.Errorf("account at %s missing email", at)
		}
		if seen[email] {
			return fmt.Errorf("account at %s repeats email %s", at, email)
		}
		seen[email] = true

		if err := validateSeedAccounts(account.Referrals, at+".referrals", seen); err != nil {
			return err
		}
	}
	return nil
}

// SeedAccounts creates the tree top-down so every referrer exists before the
// accounts it referred. Accounts whose email is already registered are reused,
// which makes seeding the same file twice a no-op. It returns how many
// accounts were created.
func SeedAccounts(ctx context.Context, registrar AccountRegistrar, accounts store.AccountStore, roots []SeedAccount) (int, error) {
	created := 0
	var seed func(nodes []SeedAccount, referredBy string) error
	seed = func(nodes []SeedAccount, referredBy string) error {
		for _, node := range nodes {
			email := strings.ToLower(strings.TrimSpace(node.Email))

			account, err := accounts.GetAccountByEmail(ctx, email)
			switch {
			case err == nil:
				if account.ReferredBy != referredBy {
					zap.L().Warn("Existing account has a different referrer, keeping it",
						zap.String("email", email),
						zap.String("referred_by", account.ReferredBy),
						zap.String("seed_referred_by", referredBy))
				}
			case errors.Is(err, store.ErrAccountNotFound):
				account, err = registrar.CreateAccount(ctx, node.Name, email, referredBy)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", email, err)
				}
				created++
				zap.L().Info("Seeded account",
					zap.String("user_id", account.Id),
					zap.String("email", email),
					zap.String("referred_by", referredBy))
			default:
				return fmt.Errorf("failed to look up %s: %w", email, err)
			}

			if err := seed(node.Referrals, account.Id); err != nil {
				return err
			}
		}
		return nil
	}

	if err := seed(roots, ""); err != nil {
		return created, err
	}
	return created, nil
}
