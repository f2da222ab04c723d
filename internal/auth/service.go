package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cryptosim/internal/types"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
)

// User is a registered account profile. The spendable balance lives in the
// engine's balance store, not here.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredUser is the checkpoint shape of a user, password hash included.
type StoredUser struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type record struct {
	user User
	hash string
}

// Service is the user registry and session issuer. Accounts are created with
// a zero balance; role is derived from the configured admin email. Tokens
// are HS256 JWTs carrying the user id and role.
type Service struct {
	mu      sync.RWMutex
	users   map[string]*record
	byEmail map[string]string

	issuer     string
	secret     []byte
	ttl        time.Duration
	adminEmail string
}

func NewService(issuer string, secret []byte, ttl time.Duration, adminEmail string) *Service {
	return &Service{
		users:      make(map[string]*record),
		byEmail:    make(map[string]string),
		issuer:     issuer,
		secret:     secret,
		ttl:        ttl,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
	}
}

func (s *Service) Register(name, email, password string) (User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return User{}, errors.New("name, email and password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[email]; taken {
		return User{}, ErrEmailTaken
	}
	u := User{ID: uuid.NewString(), Name: name, Email: email, CreatedAt: time.Now().UTC()}
	s.users[u.ID] = &record{user: u, hash: string(hash)}
	s.byEmail[email] = u.ID
	return u, nil
}

func (s *Service) Login(email, password string) (string, User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.RLock()
	id, ok := s.byEmail[email]
	var rec *record
	if ok {
		rec = s.users[id]
	}
	s.mu.RUnlock()
	if rec == nil {
		return "", User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.hash), []byte(password)); err != nil {
		return "", User{}, ErrInvalidCredentials
	}
	token, err := s.signToken(rec.user)
	if err != nil {
		return "", User{}, err
	}
	return token, rec.user, nil
}

func (s *Service) ChangePassword(userID, current, next string) error {
	if next == "" {
		return errors.New("new password required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.hash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	rec.hash = string(hash)
	return nil
}

// Role derives the session role: the configured admin email gets admin,
// everyone else is a regular user.
func (s *Service) Role(u User) types.Role {
	if s.adminEmail != "" && u.Email == s.adminEmail {
		return types.RoleAdmin
	}
	return types.RoleUser
}

func (s *Service) GetUser(userID string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return rec.user, nil
}

// ListUsers returns all registered users sorted by creation time, newest first.
func (s *Service) ListUsers() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, rec := range s.users {
		out = append(out, rec.user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Service) DeleteUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	delete(s.byEmail, rec.user.Email)
	delete(s.users, userID)
	return nil
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func (s *Service) signToken(u User) (string, error) {
	now := time.Now().UTC()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Role: string(s.Role(u)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// ParseToken validates a session token and returns the user id and role it
// carries. The engine trusts this pair as-is.
func (s *Service) ParseToken(token string) (string, types.Role, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", "", err
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return "", "", errors.New("invalid token")
	}
	if claims.Issuer != s.issuer {
		return "", "", errors.New("invalid issuer")
	}
	if claims.Subject == "" {
		return "", "", errors.New("invalid subject")
	}
	role := types.Role(claims.Role)
	if role != types.RoleAdmin {
		role = types.RoleUser
	}
	return claims.Subject, role, nil
}

func (s *Service) Export() []StoredUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StoredUser, 0, len(s.users))
	for _, rec := range s.users {
		out = append(out, StoredUser{
			ID:           rec.user.ID,
			Name:         rec.user.Name,
			Email:        rec.user.Email,
			PasswordHash: rec.hash,
			CreatedAt:    rec.user.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Service) Restore(users []StoredUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]*record, len(users))
	s.byEmail = make(map[string]string, len(users))
	for _, su := range users {
		if su.ID == "" || su.Email == "" {
			return fmt.Errorf("invalid stored user %q", su.ID)
		}
		u := User{ID: su.ID, Name: su.Name, Email: strings.ToLower(su.Email), CreatedAt: su.CreatedAt}
		s.users[u.ID] = &record{user: u, hash: su.PasswordHash}
		s.byEmail[u.Email] = u.ID
	}
	return nil
}
