// Package service provides the business logic for the credential store and
// the shared forum unit, delegating persistence to repository interfaces.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rmadden/backroom/internal/errs"
	"github.com/rmadden/backroom/internal/models"
)

const (
	// keySessions is the forum-unit document holding the session directory.
	keySessions = "sessions"
	// keyThreads is the forum-unit document holding the thread collection.
	keyThreads = "threads"

	// maxCollectionBytes caps the serialized thread collection. A create
	// that would exceed it is rejected whole; replies are exempt.
	maxCollectionBytes = 2 * 1024 * 1024

	// adminUsername is the only principal allowed destructive operations.
	adminUsername = "admin"
)

// ForumStateRepository defines the persistence operations required by the
// shared forum unit. Documents are read and written whole; Get returns nil
// for an absent document.
type ForumStateRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ForumService owns the session directory and the thread collection. All
// operations are serialized through a single mutex, mirroring the
// one-transaction-at-a-time storage unit they run against: a read-modify-write
// cycle never interleaves with another.
type ForumService struct {
	repo ForumStateRepository
	log  *zap.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewForumService constructs a ForumService using the provided repository.
func NewForumService(repo ForumStateRepository, log *zap.Logger) *ForumService {
	return &ForumService{repo: repo, log: log, now: time.Now}
}

func (s *ForumService) loadSessions(ctx context.Context) (map[string]models.DirectoryEntry, error) {
	raw, err := s.repo.Get(ctx, keySessions)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	sessions := make(map[string]models.DirectoryEntry)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &sessions); err != nil {
			return nil, fmt.Errorf("decode sessions: %w", err)
		}
	}
	return sessions, nil
}

func (s *ForumService) saveSessions(ctx context.Context, sessions map[string]models.DirectoryEntry) error {
	raw, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	return s.repo.Put(ctx, keySessions, raw)
}

func (s *ForumService) loadThreads(ctx context.Context) ([]models.Thread, error) {
	raw, err := s.repo.Get(ctx, keyThreads)
	if err != nil {
		return nil, fmt.Errorf("load threads: %w", err)
	}
	threads := []models.Thread{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &threads); err != nil {
			return nil, fmt.Errorf("decode threads: %w", err)
		}
	}
	return threads, nil
}

// StoreSession upserts the session for username in the directory,
// overwriting any prior entry. It is the replication target of Login.
func (s *ForumService) StoreSession(ctx context.Context, username, token, expiresAt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.loadSessions(ctx)
	if err != nil {
		return err
	}
	sessions[username] = models.DirectoryEntry{Token: token, ExpiresAt: expiresAt}
	return s.saveSessions(ctx, sessions)
}

// resolveToken scans the directory for an unexpired entry with a matching
// token and returns its username, or "" when none matches. The linear scan is
// fine at the expected session counts. Caller must hold s.mu.
func (s *ForumService) resolveToken(ctx context.Context, token string) (string, error) {
	sessions, err := s.loadSessions(ctx)
	if err != nil {
		return "", err
	}
	for username, entry := range sessions {
		if entry.Token != token {
			continue
		}
		if expired(entry.ExpiresAt, s.now()) {
			continue
		}
		return username, nil
	}
	return "", nil
}

// ValidateRequest resolves token through the session directory, returning the
// owning username or ErrUnauthorized.
func (s *ForumService) ValidateRequest(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username, err := s.resolveToken(ctx, token)
	if err != nil {
		return "", err
	}
	if username == "" {
		return "", errs.ErrUnauthorized
	}
	return username, nil
}

// RemoveSessionByToken deletes the directory entry holding token, if any.
// Used by logout; removing an unknown token is not an error.
func (s *ForumService) RemoveSessionByToken(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.loadSessions(ctx)
	if err != nil {
		return err
	}
	for username, entry := range sessions {
		if entry.Token == token {
			delete(sessions, username)
			return s.saveSessions(ctx, sessions)
		}
	}
	return nil
}

// ListThreads returns the full thread collection, newest first, with every
// field defensively defaulted so the client never sees null-shaped data.
func (s *ForumService) ListThreads(ctx context.Context, token string) ([]models.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.requireUser(ctx, token); err != nil {
		return nil, err
	}

	threads, err := s.loadThreads(ctx)
	if err != nil {
		return nil, err
	}
	for i := range threads {
		sanitizeThread(&threads[i])
	}
	return threads, nil
}

// CreateThread validates input, constructs a new thread, prepends it to the
// collection, and persists — unless the serialized collection would exceed
// the size ceiling, in which case nothing is written.
func (s *ForumService) CreateThread(ctx context.Context, token string, input PostInput) (*models.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username, err := s.requireUser(ctx, token)
	if err != nil {
		return nil, err
	}

	imageURL, err := encodeImage(input.Image, s.log)
	if err != nil {
		return nil, err
	}
	if emptyContent(input.Content) && imageURL == "" {
		return nil, errs.Wrap(errs.ErrBadRequest, "Thread content or image is required")
	}

	threads, err := s.loadThreads(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	thread := models.Thread{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		Subject:   input.Subject,
		Content:   input.Content,
		Username:  username,
		Timestamp: now.UTC().Format(time.RFC3339),
		ImageURL:  imageURL,
		Replies:   []models.Reply{},
	}
	threads = append([]models.Thread{thread}, threads...)

	raw, err := json.Marshal(threads)
	if err != nil {
		return nil, fmt.Errorf("encode threads: %w", err)
	}
	if len(raw) > maxCollectionBytes {
		s.log.Warn("thread collection ceiling hit",
			zap.Int("size", len(raw)),
			zap.Int("max", maxCollectionBytes))
		return nil, errs.Wrap(errs.ErrStorageLimit,
			"Storage limit exceeded. Please try with a smaller image or contact admin.")
	}

	if err := s.repo.Put(ctx, keyThreads, raw); err != nil {
		return nil, fmt.Errorf("store threads: %w", err)
	}
	s.log.Info("thread created",
		zap.String("thread", thread.ID),
		zap.String("username", username),
		zap.Int("collection_bytes", len(raw)))
	return &thread, nil
}

// CreateReply appends a reply to the thread identified by threadID and
// persists the collection. The size ceiling is deliberately not re-checked
// here; only thread creation is admission-controlled.
func (s *ForumService) CreateReply(ctx context.Context, token, threadID string, input PostInput) (*models.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	username, err := s.requireUser(ctx, token)
	if err != nil {
		return nil, err
	}

	imageURL, err := encodeImage(input.Image, s.log)
	if err != nil {
		return nil, err
	}
	if emptyContent(input.Content) && imageURL == "" {
		return nil, errs.Wrap(errs.ErrBadRequest, "Reply content or image is required")
	}

	threads, err := s.loadThreads(ctx)
	if err != nil {
		return nil, err
	}
	idx := findThread(threads, threadID)
	if idx < 0 {
		return nil, errs.Wrap(errs.ErrNotFound, "Thread not found")
	}

	now := s.now()
	reply := models.Reply{
		ID:        strconv.FormatInt(now.UnixMilli(), 10),
		Content:   input.Content,
		Username:  username,
		Timestamp: now.UTC().Format(time.RFC3339),
		ImageURL:  imageURL,
	}
	threads[idx].Replies = append(threads[idx].Replies, reply)

	if err := s.saveThreads(ctx, threads); err != nil {
		return nil, err
	}
	s.log.Info("reply created",
		zap.String("thread", threadID),
		zap.String("reply", reply.ID),
		zap.String("username", username))
	return &reply, nil
}

// DeleteThread removes a thread and all its replies. Admin only.
func (s *ForumService) DeleteThread(ctx context.Context, token, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAdmin(ctx, token); err != nil {
		return err
	}

	threads, err := s.loadThreads(ctx)
	if err != nil {
		return err
	}
	idx := findThread(threads, threadID)
	if idx < 0 {
		return errs.Wrap(errs.ErrNotFound, "Thread not found")
	}
	threads = append(threads[:idx], threads[idx+1:]...)
	return s.saveThreads(ctx, threads)
}

// DeleteReply removes a single reply from its thread. Admin only.
func (s *ForumService) DeleteReply(ctx context.Context, token, threadID, replyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAdmin(ctx, token); err != nil {
		return err
	}

	threads, err := s.loadThreads(ctx)
	if err != nil {
		return err
	}
	idx := findThread(threads, threadID)
	if idx < 0 {
		return errs.Wrap(errs.ErrNotFound, "Thread not found")
	}

	replies := threads[idx].Replies
	for i := range replies {
		if replies[i].ID == replyID {
			threads[idx].Replies = append(replies[:i], replies[i+1:]...)
			return s.saveThreads(ctx, threads)
		}
	}
	return errs.Wrap(errs.ErrNotFound, "Reply not found")
}

// PurgeAll deletes the entire thread collection. Admin only.
func (s *ForumService) PurgeAll(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireAdmin(ctx, token); err != nil {
		return err
	}
	return s.repo.Delete(ctx, keyThreads)
}

func (s *ForumService) saveThreads(ctx context.Context, threads []models.Thread) error {
	raw, err := json.Marshal(threads)
	if err != nil {
		return fmt.Errorf("encode threads: %w", err)
	}
	return s.repo.Put(ctx, keyThreads, raw)
}

func (s *ForumService) requireUser(ctx context.Context, token string) (string, error) {
	username, err := s.resolveToken(ctx, token)
	if err != nil {
		return "", err
	}
	if username == "" {
		return "", errs.Wrap(errs.ErrUnauthorized, "Authentication required")
	}
	return username, nil
}

func (s *ForumService) requireAdmin(ctx context.Context, token string) error {
	username, err := s.requireUser(ctx, token)
	if err != nil {
		return err
	}
	if username != adminUsername {
		return errs.Wrap(errs.ErrForbidden, "Admin privileges required")
	}
	return nil
}

func findThread(threads []models.Thread, id string) int {
	for i := range threads {
		if threads[i].ID == id {
			return i
		}
	}
	return -1
}

func sanitizeThread(t *models.Thread) {
	if t.Username == "" {
		t.Username = "anonymous"
	}
	if t.Replies == nil {
		t.Replies = []models.Reply{}
	}
	for i := range t.Replies {
		if t.Replies[i].Username == "" {
			t.Replies[i].Username = "anonymous"
		}
	}
}

// expired reports whether an RFC 3339 expiry is in the past. An unparsable
// expiry counts as expired.
func expired(expiresAt string, now time.Time) bool {
	t, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return true
	}
	return !t.After(now)
}
