package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/internal/database/memdb"
	"github.com/thereayou/coursechat/internal/logger"
	"github.com/thereayou/coursechat/internal/models"
	"github.com/thereayou/coursechat/pkg/auth"
)

func TestMemoryKVExpiry(t *testing.T) {
	kv := NewMemoryKV()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	kv.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))
	val, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	now = now.Add(time.Minute)
	_, err = kv.Get(ctx, "k")
	assert.Equal(t, ErrCacheMiss, err)

	ok, err := kv.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBlacklist(t *testing.T) {
	ctx := context.Background()
	bl := NewBlacklist(NewMemoryKV())

	revoked, err := bl.Revoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, bl.Revoke(ctx, "tok", time.Hour))
	revoked, err = bl.Revoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, bl.Revoke(ctx, "stale", 0))
	revoked, err = bl.Revoked(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, revoked)
}

type countingOracle struct {
	calls  int
	access chat.CourseAccess
	err    error
}

func (o *countingOracle) GetCourseAccess(context.Context, uuid.UUID, uuid.UUID) (chat.CourseAccess, error) {
	o.calls++
	return o.access, o.err
}

type brokenKV struct{}

func (brokenKV) Get(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func (brokenKV) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection refused")
}

func (brokenKV) Exists(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestCachedAccessOracle(t *testing.T) {
	ctx := context.Background()
	user, course := uuid.New(), uuid.New()

	next := &countingOracle{access: chat.CourseAccess{IsEnrolled: true}}
	oracle := NewCachedAccessOracle(next, NewMemoryKV(), 30*time.Second, logger.Discard())

	for i := 0; i < 3; i++ {
		access, err := oracle.GetCourseAccess(ctx, user, course)
		require.NoError(t, err)
		assert.True(t, access.IsEnrolled)
	}
	assert.Equal(t, 1, next.calls)

	// Ошибки не кэшируются
	failing := &countingOracle{err: chat.ErrCourseNotFound}
	oracle = NewCachedAccessOracle(failing, NewMemoryKV(), 30*time.Second, logger.Discard())
	for i := 0; i < 2; i++ {
		_, err := oracle.GetCourseAccess(ctx, user, course)
		assert.ErrorIs(t, err, chat.ErrCourseNotFound)
	}
	assert.Equal(t, 2, failing.calls)

	// Недоступный кэш не мешает ответу
	oracle = NewCachedAccessOracle(next, brokenKV{}, 30*time.Second, logger.Discard())
	access, err := oracle.GetCourseAccess(ctx, user, course)
	require.NoError(t, err)
	assert.True(t, access.IsEnrolled)
}

func TestCachedAccessExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	user, course := uuid.New(), uuid.New()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	kv := NewMemoryKV()
	kv.now = func() time.Time { return now }
	next := &countingOracle{access: chat.CourseAccess{IsEnrolled: true}}
	oracle := NewCachedAccessOracle(next, kv, 30*time.Second, logger.Discard())

	access, err := oracle.GetCourseAccess(ctx, user, course)
	require.NoError(t, err)
	assert.True(t, access.IsEnrolled)

	// Студента отчислили: до истечения TTL действует старый ответ
	next.access = chat.CourseAccess{}
	now = now.Add(29 * time.Second)
	access, err = oracle.GetCourseAccess(ctx, user, course)
	require.NoError(t, err)
	assert.True(t, access.IsEnrolled)

	now = now.Add(time.Second)
	access, err = oracle.GetCourseAccess(ctx, user, course)
	require.NoError(t, err)
	assert.False(t, access.IsEnrolled)
	assert.False(t, chat.PolicyFor(models.RoleStudent).CanJoin(access))
	assert.Equal(t, 2, next.calls)
}

func TestVerifyCredential(t *testing.T) {
	ctx := context.Background()
	db := memdb.New()
	alice := db.AddUser(models.User{Name: "Alice", Email: "alice@uni.test", Role: models.RoleTeacher})
	ghost := db.AddUser(models.User{Name: "Ghost", Email: "ghost@uni.test"})
	db.Deactivate(ghost.ID)

	jwtManager := auth.NewJWTManager("secret", time.Hour)
	blacklist := NewBlacklist(NewMemoryKV())
	verifier := NewIdentityVerifier(jwtManager, db, blacklist, logger.Discard())

	token, err := jwtManager.Generate(alice.ID.String(), string(alice.Role))
	require.NoError(t, err)

	id, err := verifier.VerifyCredential(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, chat.Identity{UserID: alice.ID, Role: models.RoleTeacher, DisplayName: "Alice"}, id)

	_, err = verifier.VerifyCredential(ctx, "")
	assert.ErrorIs(t, err, chat.ErrMissingCredential)

	_, err = verifier.VerifyCredential(ctx, "garbage")
	assert.ErrorIs(t, err, chat.ErrInvalidCredential)

	unknown, err := jwtManager.Generate(uuid.NewString(), "student")
	require.NoError(t, err)
	_, err = verifier.VerifyCredential(ctx, unknown)
	assert.ErrorIs(t, err, chat.ErrUnknownUser)

	inactive, err := jwtManager.Generate(ghost.ID.String(), "student")
	require.NoError(t, err)
	_, err = verifier.VerifyCredential(ctx, inactive)
	assert.ErrorIs(t, err, chat.ErrUnknownUser)

	badSubject, err := jwtManager.Generate("not-a-uuid", "student")
	require.NoError(t, err)
	_, err = verifier.VerifyCredential(ctx, badSubject)
	assert.ErrorIs(t, err, chat.ErrInvalidCredential)

	require.NoError(t, blacklist.Revoke(ctx, token, time.Hour))
	_, err = verifier.VerifyCredential(ctx, token)
	assert.ErrorIs(t, err, chat.ErrInvalidCredential)
}

func TestVerifyCredentialExpired(t *testing.T) {
	db := memdb.New()
	alice := db.AddUser(models.User{Name: "Alice"})

	expired := auth.NewJWTManager("secret", -time.Minute)
	token, err := expired.Generate(alice.ID.String(), "student")
	require.NoError(t, err)

	verifier := NewIdentityVerifier(auth.NewJWTManager("secret", time.Hour), db, nil, logger.Discard())
	_, err = verifier.VerifyCredential(context.Background(), token)
	assert.ErrorIs(t, err, chat.ErrExpiredCredential)
}
