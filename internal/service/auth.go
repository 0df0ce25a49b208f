package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/rmadden/backroom/internal/errs"
	"github.com/rmadden/backroom/internal/models"
)

const (
	// keyUserData is the per-user document holding the registration record.
	keyUserData = "userData"
	// keySession is the per-user document holding the current session.
	// A user has at most one; a new login overwrites it.
	keySession = "session"

	// sessionTTL is fixed at issuance; expiry is checked lazily.
	sessionTTL = 30 * 24 * time.Hour

	// replicateTimeout bounds the background session replication, including
	// its retries.
	replicateTimeout = 5 * time.Second
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9]+$`)

// UserStateRepository defines the persistence operations required by the
// credential store. Each username addresses an isolated set of documents;
// Get returns nil for an absent document.
type UserStateRepository interface {
	Get(ctx context.Context, username, key string) ([]byte, error)
	Put(ctx context.Context, username, key string, value []byte) error
	Delete(ctx context.Context, username, key string) error
}

// SessionReplicator receives a copy of each newly issued session so forum
// operations can validate tokens without consulting the credential store.
type SessionReplicator interface {
	StoreSession(ctx context.Context, username, token, expiresAt string) error
}

// AuthService implements registration, login, token validation, and logout
// over per-user state. Operations against the same username are serialized
// with a per-username mutex; distinct users never contend.
//
// Login replicates the new session into the forum directory as a
// fire-and-forget side effect: replication failure is logged and swallowed,
// leaving a window where the directory lags behind this store.
type AuthService struct {
	repo       UserStateRepository
	replicator SessionReplicator
	inviteCode string
	log        *zap.Logger

	now      func() time.Time
	newToken func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAuthService constructs an AuthService. replicator may not be nil;
// inviteCode is the process-wide registration secret.
func NewAuthService(repo UserStateRepository, replicator SessionReplicator, inviteCode string, log *zap.Logger) *AuthService {
	return &AuthService{
		repo:       repo,
		replicator: replicator,
		inviteCode: inviteCode,
		log:        log,
		now:        time.Now,
		newToken:   func() string { return uuid.New().String() },
		locks:      make(map[string]*sync.Mutex),
	}
}

func (s *AuthService) userLock(username string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[username]
	if !ok {
		l = &sync.Mutex{}
		s.locks[username] = l
	}
	return l
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) loadRecord(ctx context.Context, username string) (*models.UserRecord, error) {
	raw, err := s.repo.Get(ctx, username, keyUserData)
	if err != nil {
		return nil, fmt.Errorf("load user record: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var record models.UserRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	return &record, nil
}

func (s *AuthService) loadSession(ctx context.Context, username string) (*models.Session, error) {
	raw, err := s.repo.Get(ctx, username, keySession)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// Register creates the user record for username. It fails when the invite
// code does not match the process-wide secret, when the username violates
// the [a-z0-9]+ pattern, or when the record already exists.
func (s *AuthService) Register(ctx context.Context, email, username, password, inviteCode string) error {
	if inviteCode == "" || inviteCode != s.inviteCode {
		return errs.Wrap(errs.ErrForbidden, "Invalid invite code")
	}
	if username == "" {
		return errs.Wrap(errs.ErrBadRequest, "Username is required")
	}
	if !usernamePattern.MatchString(username) {
		return errs.Wrap(errs.ErrBadRequest, "Username must be one word with only lowercase letters")
	}

	lock := s.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.loadRecord(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return errs.Wrap(errs.ErrConflict, "User already exists")
	}

	record := models.UserRecord{
		Email:        email,
		Username:     username,
		PasswordHash: hashPassword(password),
		CreatedAt:    s.now().UTC().Format(time.RFC3339),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}
	if err := s.repo.Put(ctx, username, keyUserData, raw); err != nil {
		return fmt.Errorf("store user record: %w", err)
	}
	s.log.Info("user registered", zap.String("username", username))
	return nil
}

// Login authenticates against the record stored under username (the address
// of the state partition); the supplied login name may be either the record's
// username or its email. On success it issues a fresh token, overwrites the
// stored session, and replicates it to the forum directory in the background.
func (s *AuthService) Login(ctx context.Context, login, password string) (*models.Session, *models.UserRecord, error) {
	lock := s.userLock(login)
	lock.Lock()
	defer lock.Unlock()

	record, err := s.loadRecord(ctx, login)
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		return nil, nil, errs.Wrap(errs.ErrNotFound, "User not found")
	}
	if record.Username != login && record.Email != login {
		return nil, nil, errs.Wrap(errs.ErrUnauthorized, "Invalid credentials")
	}
	if record.PasswordHash != hashPassword(password) {
		return nil, nil, errs.Wrap(errs.ErrUnauthorized, "Invalid credentials")
	}

	session := models.Session{
		Token:     s.newToken(),
		Username:  record.Username,
		ExpiresAt: s.now().Add(sessionTTL).UTC().Format(time.RFC3339),
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return nil, nil, fmt.Errorf("encode session: %w", err)
	}
	if err := s.repo.Put(ctx, login, keySession, raw); err != nil {
		return nil, nil, fmt.Errorf("store session: %w", err)
	}

	go s.replicate(session)

	s.log.Info("user logged in", zap.String("username", record.Username))
	return &session, record, nil
}

// replicate pushes a session copy into the forum directory. Best effort: a
// short bounded backoff, then the failure is logged and dropped. The login
// has already succeeded by the time this runs.
func (s *AuthService) replicate(session models.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), replicateTimeout)
	defer cancel()

	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.replicator.StoreSession(ctx, session.Username, session.Token, session.ExpiresAt); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		s.log.Error("session replication failed, directory will lag",
			zap.String("username", session.Username),
			zap.Error(err))
	}
}

// Validate checks token against the session stored under username and
// returns the user record on success.
func (s *AuthService) Validate(ctx context.Context, username, token string) (*models.UserRecord, error) {
	lock := s.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.loadSession(ctx, username)
	if err != nil {
		return nil, err
	}
	if session == nil || session.Token != token {
		return nil, errs.ErrUnauthorized
	}
	if expired(session.ExpiresAt, s.now()) {
		return nil, errs.Wrap(errs.ErrUnauthorized, "Token expired")
	}

	record, err := s.loadRecord(ctx, username)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errs.Wrap(errs.ErrNotFound, "User not found")
	}
	return record, nil
}

// Logout deletes the stored session only when its token matches. A
// non-matching or absent session still counts as a successful logout.
func (s *AuthService) Logout(ctx context.Context, username, token string) error {
	lock := s.userLock(username)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.loadSession(ctx, username)
	if err != nil {
		return err
	}
	if session == nil || session.Token != token {
		return nil
	}
	return s.repo.Delete(ctx, username, keySession)
}
