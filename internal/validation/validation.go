// Package validation checks user-supplied account, feedback and file input
// before it reaches storage.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/FocuswithJustin/GitaCompanion/core/errors"
)

// Limits on user-supplied values (CWE-400).
const (
	// MinPasswordLength is the shortest accepted password.
	MinPasswordLength = 8
	// MaxPasswordLength is bcrypt's input limit.
	MaxPasswordLength = 72
	// MaxNameLength is the longest accepted display name, in characters.
	MaxNameLength = 100
	// MaxEmailLength is the longest accepted email address.
	MaxEmailLength = 254
	// MaxFeedbackLength is the longest accepted feedback message, in characters.
	MaxFeedbackLength = 2000
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common path validation errors.
var (
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Email checks the shape of an address after trimming.
func Email(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperrors.NewValidation("email", "email is required")
	}
	if len(email) > MaxEmailLength {
		return apperrors.NewValidation("email", "email is too long")
	}
	if !emailPattern.MatchString(email) {
		return apperrors.NewValidation("email", "email is not a valid address")
	}
	return nil
}

// Password enforces the account password rules: at least
// MinPasswordLength characters, starting with an ASCII letter and
// containing both an ASCII letter and an ASCII digit.
func Password(password string) error {
	if password == "" {
		return apperrors.NewValidation("password", "password is required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperrors.NewValidation("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		return apperrors.NewValidation("password", fmt.Sprintf("password must be at most %d bytes", MaxPasswordLength))
	}
	if !isASCIILetter(password[0]) {
		return apperrors.NewValidation("password", "password must start with a letter")
	}
	var hasDigit bool
	for i := 0; i < len(password); i++ {
		if password[i] >= '0' && password[i] <= '9' {
			hasDigit = true
			break
		}
	}
	if !hasDigit {
		return apperrors.NewValidation("password", "password must contain a letter and a number")
	}
	return nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// Name checks a display name after trimming.
func Name(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.NewValidation("name", "name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return apperrors.NewValidation("name", "name is too long")
	}
	if hasControl(name) {
		return apperrors.NewValidation("name", "name contains control characters")
	}
	return nil
}

// Signup validates a registration request.
func Signup(name, email, password string) error {
	if err := Name(name); err != nil {
		return err
	}
	if err := Email(email); err != nil {
		return err
	}
	return Password(password)
}

// Credentials checks that a login request carries both fields. Password
// rules are not applied so accounts created under older rules can log in.
func Credentials(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return apperrors.NewValidation("credentials", "email and password are required")
	}
	return nil
}

// Feedback validates a feedback submission. The email is optional and the
// body is measured after trimming.
func Feedback(name, email, body string) error {
	if err := Name(name); err != nil {
		return err
	}
	if strings.TrimSpace(email) != "" {
		if err := Email(email); err != nil {
			return err
		}
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return apperrors.NewValidation("feedback", "feedback is required")
	}
	if utf8.RuneCountInString(body) > MaxFeedbackLength {
		return apperrors.NewValidation("feedback", fmt.Sprintf("feedback must be at most %d characters", MaxFeedbackLength))
	}
	return nil
}

// ValidatePath rejects empty paths, overlong paths and paths containing
// null bytes or control characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	if hasControl(path) {
		return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
	}
	return nil
}

func hasControl(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// FileType represents a sniffed file type.
type FileType string

const (
	FileTypeXZ      FileType = "xz"
	FileTypeJSON    FileType = "json"
	FileTypeUnknown FileType = "unknown"
)

var xzMagic = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}

// SniffFileType identifies xz streams by magic bytes and JSON documents by
// their first non-space byte.
func SniffFileType(header []byte) FileType {
	if bytes.HasPrefix(header, xzMagic) {
		return FileTypeXZ
	}
	trimmed := bytes.TrimLeft(header, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FileTypeJSON
	}
	return FileTypeUnknown
}
