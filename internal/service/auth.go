package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/cryams/cryams/internal/model"
	"github.com/cryams/cryams/internal/store"
)

const (
	DefaultBcryptCost        = 12
	DefaultMinPasswordLength = 12

	// MaxPasswordBytes is the longest input bcrypt accepts.
	MaxPasswordBytes = 72

	passwordSpecials = "@$!%*?&"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyConfigured  = errors.New("admin account already configured")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrPasswordPolicy     = errors.New("password does not meet policy")
	ErrCredentialUnusable = errors.New("admin credential file is unreadable")
)

// PolicyError describes why a password was refused. Its message is safe to
// show to the person who submitted the password.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return "password policy: " + e.Reason }

func (e *PolicyError) Unwrap() error { return ErrPasswordPolicy }

// AuthOptions configures hashing and session signing.
type AuthOptions struct {
	BcryptCost        int
	MinPasswordLength int
	// StrongPasswords additionally requires lower and upper case letters, a
	// digit and one of @$!%*?&.
	StrongPasswords bool
	JWTSecret       string
}

func (o AuthOptions) withDefaults() AuthOptions {
	if o.BcryptCost == 0 {
		o.BcryptCost = DefaultBcryptCost
	}
	if o.MinPasswordLength == 0 {
		o.MinPasswordLength = DefaultMinPasswordLength
	}
	return o
}

// Principal identifies an authenticated administrator session.
type Principal struct {
	Username string
}

// AuthService guards the single administrator account. The command line
// may change the credential file while a server runs, so every check picks
// up a replaced file and every mutation holds the file lock and re-reads
// before writing. Memory is only updated after the file was written.
type AuthService struct {
	mu    sync.Mutex
	creds *store.CredentialFile
	seen  store.Stamp
	admin *model.AdminCredential
	// unusable is set when the credential file exists but cannot be read.
	// Setup stays closed and every login fails until the account is reset.
	unusable  bool
	opts      AuthOptions
	jwtSecret []byte
	now       func() time.Time
}

// NewAuthService loads the credential once. A corrupt credential file does
// not prevent startup; the error is returned alongside a usable service so
// the caller can log it.
func NewAuthService(creds *store.CredentialFile, opts AuthOptions) (*AuthService, error) {
	opts = opts.withDefaults()
	if opts.BcryptCost < bcrypt.MinCost || opts.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d outside %d..%d", opts.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if opts.JWTSecret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}

	s := &AuthService{
		creds:     creds,
		opts:      opts,
		jwtSecret: []byte(opts.JWTSecret),
		now:       func() time.Time { return time.Now().UTC() },
	}

	if err := s.load(); err != nil {
		return s, err
	}
	return s, nil
}

// load reads the credential file into memory. Callers hold mu.
func (s *AuthService) load() error {
	s.seen = s.creds.Stamp()
	admin, err := s.creds.Load()
	if err != nil {
		s.admin = nil
		s.unusable = true
		return fmt.Errorf("%w: %v", ErrCredentialUnusable, err)
	}
	s.admin = admin
	s.unusable = false
	return nil
}

// refresh reloads when the file was replaced since it was last read.
// Callers hold mu.
func (s *AuthService) refresh() {
	if !s.creds.Stamp().Equal(s.seen) {
		_ = s.load()
	}
}

// lockAndLoad takes the file lock and re-reads the credential. Callers hold
// mu and must call the returned unlock.
func (s *AuthService) lockAndLoad() (unlock func(), err error) {
	unlock, err = s.creds.Lock()
	if err != nil {
		return nil, err
	}
	_ = s.load()
	return unlock, nil
}

// NeedsSetup reports whether no administrator account exists yet.
func (s *AuthService) NeedsSetup() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()
	return s.admin == nil && !s.unusable
}

// Admin returns the account without its password hash.
func (s *AuthService) Admin() (model.AdminInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()
	if s.admin == nil {
		return model.AdminInfo{}, false
	}
	return s.admin.Info(), true
}

// CheckPassword applies the password policy without hashing anything.
func (s *AuthService) CheckPassword(password string) error {
	if len([]rune(password)) < s.opts.MinPasswordLength {
		return &PolicyError{Reason: fmt.Sprintf("must be at least %d characters long", s.opts.MinPasswordLength)}
	}
	if len(password) > MaxPasswordBytes {
		return &PolicyError{Reason: fmt.Sprintf("must not exceed %d bytes", MaxPasswordBytes)}
	}
	if s.opts.StrongPasswords {
		var lower, upper, digit, special bool
		for _, r := range password {
			switch {
			case unicode.IsLower(r):
				lower = true
			case unicode.IsUpper(r):
				upper = true
			case unicode.IsDigit(r):
				digit = true
			case strings.ContainsRune(passwordSpecials, r):
				special = true
			}
		}
		if !(lower && upper && digit && special) {
			return &PolicyError{Reason: "must contain upper and lower case letters, a digit and one of " + passwordSpecials}
		}
	}
	return nil
}

// CreateAdminConfig creates the administrator account. The first successful
// call wins; later calls return ErrAlreadyConfigured without touching the
// stored credential.
func (s *AuthService) CreateAdminConfig(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lockAndLoad()
	if err != nil {
		return err
	}
	defer unlock()

	if s.admin != nil || s.unusable {
		return ErrAlreadyConfigured
	}
	return s.writeNewAdmin(username, password)
}

// ResetAdminConfig replaces the administrator account unconditionally. It is
// the recovery path for a lost password or an unreadable credential file and
// is only reachable from the command line.
func (s *AuthService) ResetAdminConfig(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.creds.Lock()
	if err != nil {
		return err
	}
	defer unlock()
	return s.writeNewAdmin(username, password)
}

func (s *AuthService) writeNewAdmin(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidUsername)
	}
	if err := s.CheckPassword(password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	c := model.AdminCredential{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.creds.Save(c); err != nil {
		return err
	}
	s.admin = &c
	s.unusable = false
	s.seen = s.creds.Stamp()
	return nil
}

// VerifyLogin checks a username and password. It returns false, without
// saying which part was wrong, for every mismatch. A successful login records
// lastLogin; the only error is a failure to persist it.
func (s *AuthService) VerifyLogin(username, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lockAndLoad()
	if err != nil {
		return false, err
	}
	defer unlock()

	if s.admin == nil || username != s.admin.Username {
		return false, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(s.admin.PasswordHash), []byte(password)) != nil {
		return false, nil
	}

	updated := *s.admin
	now := s.now()
	updated.LastLogin = &now
	if err := s.creds.Save(updated); err != nil {
		return false, err
	}
	s.admin = &updated
	s.seen = s.creds.Stamp()
	return true, nil
}

// ChangePassword replaces the password after verifying the current one.
// Sessions issued before the change stop validating.
func (s *AuthService) ChangePassword(oldPassword, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lockAndLoad()
	if err != nil {
		return err
	}
	defer unlock()

	if s.admin == nil {
		return ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(s.admin.PasswordHash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	if err := s.CheckPassword(newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	updated := *s.admin
	now := s.now()
	updated.PasswordHash = string(hash)
	updated.LastPasswordChange = &now
	if err := s.creds.Save(updated); err != nil {
		return err
	}
	s.admin = &updated
	s.seen = s.creds.Stamp()
	return nil
}

// IssueJWT creates a signed session token for the administrator.
func (s *AuthService) IssueJWT(username string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	s.refresh()
	admin := s.admin
	s.mu.Unlock()
	if admin == nil || admin.Username != username {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwtClaims{
		Generation: generation(admin.PasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "cryams",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateJWT verifies a session token against the current account.
func (s *AuthService) ValidateJWT(tokenStr string) (*Principal, error) {
	claims := &jwtClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}

	s.mu.Lock()
	s.refresh()
	admin := s.admin
	s.mu.Unlock()
	if admin == nil || claims.Subject != admin.Username || claims.Generation != generation(admin.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return &Principal{Username: claims.Subject}, nil
}

type jwtClaims struct {
	Generation string `json:"gen"`
	jwt.RegisteredClaims
}

// generation fingerprints the password hash so tokens die with the password.
func generation(passwordHash string) string {
	h := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(h[:8])
}
