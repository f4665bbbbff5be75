package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Sign-in outcomes.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactive           = errors.New("account is deactivated")
)

// Roles a user may hold. No route checks them.
var Roles = []string{"admin", "manager", "support"}

// DefaultRole is assigned when sign-up omits the role.
const DefaultRole = "admin"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NormalizeEmail case-folds and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignupRequest is the sign-up form.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Validate returns field-level messages, or nil when the form is valid.
// An empty role is replaced by DefaultRole.
func (r *SignupRequest) Validate() map[string]string {
	errs := map[string]string{}
	if r.Role == "" {
		r.Role = DefaultRole
	}

	if len(strings.TrimSpace(r.Name)) < 2 {
		errs["name"] = "Name must be at least 2 characters"
	}
	if !emailPattern.MatchString(r.Email) {
		errs["email"] = "Please enter a valid email address"
	}
	if msg := passwordProblem(r.Password); msg != "" {
		errs["password"] = msg
	}
	if !validRole(r.Role) {
		errs["role"] = "Invalid role selected"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

func passwordProblem(pw string) string {
	if len(pw) < 6 {
		return "Password must be at least 6 characters"
	}
	var lower, upper, digit bool
	for _, c := range pw {
		switch {
		case unicode.IsLower(c):
			lower = true
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsDigit(c):
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return "Password must contain at least one uppercase letter, one lowercase letter, and one number"
	}
	return ""
}

func validRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}
