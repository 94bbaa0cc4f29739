// internal/pkg/auth/password.go
package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/pkg/apperr"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 8
	// bcrypt ignores input past 72 bytes
	maxPasswordLen = 72
)

var (
	ascendingDigits = regexp.MustCompile(`012|123|234|345|456|567|678|789`)
	guessable       = []string{"password", "123456", "qwerty", "letmein", "welcome", "admin", "monkey", "dragon", "football"}
)

// passwordRule returns a message when the password violates it
type passwordRule func(pw string) string

var passwordRules = []passwordRule{
	func(pw string) string {
		if len(pw) < minPasswordLen {
			return fmt.Sprintf("password must be at least %d characters long", minPasswordLen)
		}
		if len(pw) > maxPasswordLen {
			return fmt.Sprintf("password must be no more than %d characters long", maxPasswordLen)
		}
		return ""
	},
	requireClass(unicode.IsUpper, "password must contain at least one uppercase letter"),
	requireClass(unicode.IsLower, "password must contain at least one lowercase letter"),
	requireClass(unicode.IsNumber, "password must contain at least one number"),
	func(pw string) string {
		if ascendingDigits.MatchString(pw) {
			return "password cannot contain sequential numbers"
		}
		return ""
	},
	func(pw string) string {
		if longestRun(pw) >= 3 {
			return "password cannot contain more than 2 repeating characters"
		}
		return ""
	},
	func(pw string) string {
		lower := strings.ToLower(pw)
		for _, word := range guessable {
			if strings.Contains(lower, word) {
				return "password is too common and easily guessable"
			}
		}
		return ""
	},
}

func requireClass(class func(rune) bool, msg string) passwordRule {
	return func(pw string) string {
		if strings.IndexFunc(pw, class) < 0 {
			return msg
		}
		return ""
	}
}

func longestRun(s string) int {
	best, run := 0, 0
	var prev rune
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
		prev = r
	}
	return best
}

// PasswordManager enforces the strength policy and hashes with bcrypt
type PasswordManager struct {
	cost int
}

func NewPasswordManager(cfg *config.Config) *PasswordManager {
	cost := cfg.Security.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordManager{cost: cost}
}

// HashPassword rejects weak passwords before hashing
func (p *PasswordManager) HashPassword(password string) (string, error) {
	if err := p.ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword returns bcrypt.ErrMismatchedHashAndPassword on a wrong password
func (p *PasswordManager) VerifyPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// ValidatePassword reports the first violated rule as a validation error
func (p *PasswordManager) ValidatePassword(password string) error {
	for _, rule := range passwordRules {
		if msg := rule(password); msg != "" {
			return apperr.Validation(msg)
		}
	}
	return nil
}
