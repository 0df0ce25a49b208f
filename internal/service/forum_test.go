package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rmadden/backroom/internal/errs"
)

// fakeForumStore is an in-memory ForumStateRepository.
type fakeForumStore struct {
	docs    map[string][]byte
	failGet bool
	failPut bool
}

func newFakeForumStore() *fakeForumStore {
	return &fakeForumStore{docs: map[string][]byte{}}
}

func (f *fakeForumStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet {
		return nil, errors.New("get failed")
	}
	return f.docs[key], nil
}

func (f *fakeForumStore) Put(ctx context.Context, key string, value []byte) error {
	if f.failPut {
		return errors.New("put failed")
	}
	f.docs[key] = value
	return nil
}

func (f *fakeForumStore) Delete(ctx context.Context, key string) error {
	delete(f.docs, key)
	return nil
}

func newForumServiceForTest(t *testing.T) (*ForumService, *fakeForumStore) {
	t.Helper()
	store := newFakeForumStore()
	return NewForumService(store, zap.NewNop()), store
}

func futureExpiry() string {
	return time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
}

func loginAs(t *testing.T, svc *ForumService, username, token string) {
	t.Helper()
	require.NoError(t, svc.StoreSession(context.Background(), username, token, futureExpiry()))
}

func TestStoreSession_OverwritesPrior(t *testing.T) {
	svc, _ := newForumServiceForTest(t)
	ctx := context.Background()

	loginAs(t, svc, "bob", "token-one")
	loginAs(t, svc, "bob", "token-two")

	_, err := svc.ValidateRequest(ctx, "token-one")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	username, err := svc.ValidateRequest(ctx, "token-two")
	require.NoError(t, err)
	require.Equal(t, "bob", username)
}

func TestValidateRequest_ExpiredSession(t *testing.T) {
	svc, _ := newForumServiceForTest(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	require.NoError(t, svc.StoreSession(ctx, "bob", "stale", past))

	_, err := svc.ValidateRequest(ctx, "stale")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestValidateRequest_UnparsableExpiryTreatedAsExpired(t *testing.T) {
	svc, _ := newForumServiceForTest(t)
	ctx := context.Background()

	require.NoError(t, svc.StoreSession(ctx, "bob", "tok", "not-a-timestamp"))

	_, err := svc.ValidateRequest(ctx, "tok")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestRemoveSessionByToken(t *testing.T) {
	svc, _ := newForumServiceForTest(t)
	ctx := context.Background()

	loginAs(t, svc, "bob", "tok")
	require.NoError(t, svc.RemoveSessionByToken(ctx, "tok"))

	_, err := svc.ValidateRequest(ctx, "tok")
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	// Unknown tokens are a no-op.
	require.NoError(t, svc.RemoveSessionByToken(ctx, "unknown"))
}

func TestCreateThread_RequiresContentOrImage(t *testing.T) {
	svc, _ := newForumServiceForTest(t)
	ctx := context.Background()
	loginAs(t, svc, "bob", "tok")

	_, err := svc.CreateThread(ctx, "tok", PostInput{Subject: "s", Content: "   "})
	require.ErrorIs(t, err, errs.ErrBadRequest)
}

func TestCreateThread_ImageOnlySucceeds(t *testing.T) {
	svc, _ := newForumServiceForTest(t)
	ctx := context.Background()
	loginAs(t, svc, "bob", "tok")

	thread, err := svc.CreateThread(ctx, "tok", PostInput{
		Content: "",
		Image:   &ImageUpload{Data: []byte{0x89, 0x50, 0x4e, 0x47}, MIME: "image/png"},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(thread.ImageURL, "data:image/png;base64,"))
	require.Equal(t, "bob", thread.Username)
}

func TestCreateThread_RejectsOversizedRawImage(t *testing.T) {
	svc, _ := newForumServiceForTest(t)
	ctx := context.Background()
	loginAs(t, svc, "bob", "tok")

	_, err := svc.CreateThread(ctx, "tok", PostInput{
		Image: &ImageUpload{Data: make([]byte, maxImageBytes+1), MIME: "image/png"},
	})
	require.ErrorIs(t, err, errs.ErrBadRequest)
}

func TestCreateThread_RejectsNonImageMIME(t *testing.T) {
	svc, _ := newForumServiceForTest(t)
	ctx := context.Background()
	loginAs(t, svc, "bob", "tok")

	_, err := svc.CreateThread(ctx, "tok", PostInput{
		Image: &ImageUpload{Data: []byte("plain"), MIME: "text/plain"},
	})
	require.ErrorIs(t, err, errs.ErrBadRequest)
}

func TestCreateThread_Unauthorized(t *testing.T) {
	svc, _ := newForumServiceForTest(t)

	_, err := svc.CreateThread(context.Background(), "nope", PostInput{Content: "hi"})
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestListThreads_NewestFirst(t *testing.T) {
	svc, _ := newForumServiceForTest(t)
	ctx := context.Background()
	loginAs(t, svc, "bob", "tok")

	// Distinct clock ticks so ids differ.
	tick := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { tick = tick.Add(time.Second); return tick }

	for _, content := range []string{"A", "B", "C"} {
		_, err := svc.CreateThread(ctx, "tok", PostInput{Content: content})
		require.NoError(t, err)
	}

	threads, err := svc.ListThreads(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, threads, 3)
	require.Equal(t, "C", threads[0].Content)
	require.Equal(t, "B", threads[1].Content)
	require.Equal(t, "A", threads[2].Content)
}

func TestCreateReply_AppendsInOrder(t *testing.T) {
	svc, _ := newForumServiceForTest(t)
	ctx := context.Background()
	loginAs(t, svc, "bob", "tok")

	tick := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { tick = tick.Add(time.Second); return tick }

	thread, err := svc.CreateThread(ctx, "tok", PostInput{Content: "root"})
	require.NoError(t, err)

	for _, content := range []string{"first", "second", "third"} {
		_, err := svc.CreateReply(ctx, "tok", thread.ID, PostInput{Content: content})
		require.NoError(t, err)
	}

	threads, err := svc.ListThreads(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, threads[0].Replies, 3)
	require.Equal(t, "first", threads[0].Replies[0].Content)
	require.Equal(t, "second", threads[0].Replies[1].Content)
	require.Equal(t, "third", threads[0].Replies[2].Content)
}

func TestCreateReply_UnknownThread(t *testing.T) {
	svc, _ := newForumServiceForTest(t)
	ctx := context.Background()
	loginAs(t, svc, "bob", "tok")

	_, err := svc.CreateReply(ctx, "tok", "12345", PostInput{Content: "hi"})
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCreateThread_StorageCeilingLeavesCollectionUntouched(t *testing.T) {
	svc, store := newForumServiceForTest(t)
	ctx := context.Background()
	loginAs(t, svc, "bob", "tok")

	// Fill the collection to just under the ceiling.
	big, err := svc.CreateThread(ctx, "tok", PostInput{
		Content: strings.Repeat("x", maxCollectionBytes-200),
	})
	require.NoError(t, err)
	require.NotNil(t, big)

	before := bytes.Clone(store.docs[keyThreads])

	_, err = svc.CreateThread(ctx, "tok", PostInput{Content: strings.Repeat("y", 500)})
	require.ErrorIs(t, err, errs.ErrStorageLimit)
	require.ErrorIs(t, err, errs.ErrBadRequest)
	require.Equal(t, before, store.docs[keyThreads])
}

func TestCreateReply_NoCeilingCheck(t *testing.T) {
	svc, _ := newForumServiceForTest(t)
	ctx := context.Background()
	loginAs(t, svc, "bob", "tok")

	thread, err := svc.CreateThread(ctx, "tok", PostInput{
		Content: strings.Repeat("x", maxCollectionBytes-200),
	})
	require.NoError(t, err)

	// A reply may push the collection past the ceiling; only thread
	// creation is admission-controlled.
	_, err = svc.CreateReply(ctx, "tok", thread.ID, PostInput{Content: strings.Repeat("y", 500)})
	require.NoError(t, err)
}

func TestAdminOperations_ForbiddenForRegularUser(t *testing.T) {
	svc, _ := newForumServiceForTest(t)
	ctx := context.Background()
	loginAs(t, svc, "bob", "tok")

	thread, err := svc.CreateThread(ctx, "tok", PostInput{Content: "hello"})
	require.NoError(t, err)
	reply, err := svc.CreateReply(ctx, "tok", thread.ID, PostInput{Content: "hi"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteThread(ctx, "tok", thread.ID), errs.ErrForbidden)
	require.ErrorIs(t, svc.DeleteReply(ctx, "tok", thread.ID, reply.ID), errs.ErrForbidden)
	require.ErrorIs(t, svc.PurgeAll(ctx, "tok"), errs.ErrForbidden)

	// Nothing was deleted.
	threads, err := svc.ListThreads(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	require.Len(t, threads[0].Replies, 1)
}

func TestAdminOperations_Admin(t *testing.T) {
	svc, store := newForumServiceForTest(t)
	ctx := context.Background()
	loginAs(t, svc, "bob", "tok")
	loginAs(t, svc, "admin", "admin-tok")

	tick := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { tick = tick.Add(time.Second); return tick }

	thread, err := svc.CreateThread(ctx, "tok", PostInput{Content: "hello"})
	require.NoError(t, err)
	reply, err := svc.CreateReply(ctx, "tok", thread.ID, PostInput{Content: "hi"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteReply(ctx, "admin-tok", thread.ID, reply.ID))
	threads, err := svc.ListThreads(ctx, "tok")
	require.NoError(t, err)
	require.Empty(t, threads[0].Replies)

	require.ErrorIs(t, svc.DeleteReply(ctx, "admin-tok", thread.ID, reply.ID), errs.ErrNotFound)
	require.ErrorIs(t, svc.DeleteThread(ctx, "admin-tok", "999"), errs.ErrNotFound)

	require.NoError(t, svc.DeleteThread(ctx, "admin-tok", thread.ID))
	threads, err = svc.ListThreads(ctx, "tok")
	require.NoError(t, err)
	require.Empty(t, threads)

	_, err = svc.CreateThread(ctx, "tok", PostInput{Content: "again"})
	require.NoError(t, err)
	require.NoError(t, svc.PurgeAll(ctx, "admin-tok"))
	require.Nil(t, store.docs[keyThreads])
}

func TestListThreads_SanitizesLegacyDocuments(t *testing.T) {
	svc, store := newForumServiceForTest(t)
	ctx := context.Background()
	loginAs(t, svc, "bob", "tok")

	// A stored document with missing author and nil replies, as older
	// writers could produce.
	store.docs[keyThreads] = []byte(`[{"id":"1","subject":"","content":"hi","timestamp":"2025-01-01T00:00:00Z","replies":[{"id":"2","content":"yo","timestamp":"2025-01-01T00:00:01Z"}]},{"id":"3","content":"solo","timestamp":"2025-01-02T00:00:00Z"}]`)

	threads, err := svc.ListThreads(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, "anonymous", threads[0].Username)
	require.Equal(t, "anonymous", threads[0].Replies[0].Username)
	require.NotNil(t, threads[1].Replies)
	require.Empty(t, threads[1].Replies)
}
