package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

// Token maps an opaque credential to the user it was minted for. Tokens
// live only in memory: they are per-session capabilities, not identity,
// and a server restart invalidates all of them on purpose.
type Token struct {
	Username  string
	CreatedAt time.Time
}

// Service owns the token registry for one sync server instance. No
// process-wide state: each server carries its own Service.
type Service struct {
	log *slog.Logger

	mu         sync.RWMutex
	tokens     map[string]Token
	secretHash []byte // empty when no shared secret is configured
}

// NewService builds the registry. A non-empty secret makes every /auth
// request prove knowledge of it; the secret itself is only kept hashed.
func NewService(secret string, log *slog.Logger) (*Service, error) {
	s := &Service{
		log:    log.With(slog.String("component", "auth")),
		tokens: make(map[string]Token),
	}

	if secret != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash lan secret: %w", err)
		}
		s.secretHash = hash
	}

	return s, nil
}

// RequiresSecret reports whether /auth must carry the shared secret.
func (s *Service) RequiresSecret() bool {
	return len(s.secretHash) > 0
}

// VerifySecret checks a presented secret against the configured hash.
// Always true when no secret is configured.
func (s *Service) VerifySecret(secret string) bool {
	if !s.RequiresSecret() {
		return true
	}
	return bcrypt.CompareHashAndPassword(s.secretHash, []byte(secret)) == nil
}

// CreateToken mints a fresh token for username.
func (s *Service) CreateToken(username string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	s.mu.Lock()
	s.tokens[token] = Token{Username: username, CreatedAt: time.Now()}
	s.mu.Unlock()

	s.log.Debug("issued auth token", slog.String("username", username))
	return token, nil
}

// Validate resolves a token to its username.
func (s *Service) Validate(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.tokens[token]
	if !ok {
		return "", false
	}
	return info.Username, true
}

// Remove revokes a token; unknown tokens are ignored.
func (s *Service) Remove(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
