package chat

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/thereayou/coursechat/internal/models"
)

func TestNextReaction(t *testing.T) {
	assert.Equal(t, models.ReactionLike, NextReaction("", models.ReactionLike))
	assert.Equal(t, models.ReactionKind(""), NextReaction(models.ReactionLike, models.ReactionLike))
	assert.Equal(t, models.ReactionLove, NextReaction(models.ReactionLike, models.ReactionLove))
}

func TestNewReactionStateCounts(t *testing.T) {
	msg, course := uuid.New(), uuid.New()
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	t0 := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	state := NewReactionState(msg, course, []models.MessageReaction{
		{MessageID: msg, UserID: u3, Kind: models.ReactionLove, CreatedAt: t0.Add(2 * time.Second)},
		{MessageID: msg, UserID: u1, Kind: models.ReactionLike, CreatedAt: t0},
		{MessageID: msg, UserID: u2, Kind: models.ReactionLike, CreatedAt: t0.Add(time.Second)},
	})

	assert.Equal(t, msg, state.MessageID)
	assert.Equal(t, map[models.ReactionKind]int{models.ReactionLike: 2, models.ReactionLove: 1}, state.Counts)
	assert.Equal(t, []ReactionView{
		{UserID: u1, Reaction: models.ReactionLike},
		{UserID: u2, Reaction: models.ReactionLike},
		{UserID: u3, Reaction: models.ReactionLove},
	}, state.Reactions)

	empty := NewReactionState(msg, course, nil)
	assert.NotNil(t, empty.Reactions)
	assert.Empty(t, empty.Counts)
}

func TestErrorMatching(t *testing.T) {
	assert.ErrorIs(t, ErrMessageNotFound, ErrNotFound)
	assert.NotErrorIs(t, ErrMessageNotFound, ErrCourseNotFound)
	assert.ErrorIs(t, denied("nope"), ErrAccessDenied)
	assert.Equal(t, "access_denied", denied("nope").ErrorCode())
	assert.Equal(t, "validation_failed", ErrValidation.ErrorCode())
	assert.Equal(t, ErrInternal, AsError(assert.AnError))
	assert.Nil(t, AsError(nil))
}
