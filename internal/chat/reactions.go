package chat

import (
	"sort"

	"github.com/google/uuid"
	"github.com/thereayou/coursechat/internal/models"
)

// NextReaction применяет правило переключения: та же реакция снимается,
// другая заменяет текущую. Пустая строка — реакции нет
func NextReaction(current, requested models.ReactionKind) models.ReactionKind {
	if current == requested {
		return ""
	}
	return requested
}

type ReactionView struct {
	UserID   uuid.UUID           `json:"user_id"`
	Reaction models.ReactionKind `json:"reaction"`
}

// ReactionState — полный набор реакций сообщения, клиенты заменяют им своё состояние целиком
type ReactionState struct {
	MessageID uuid.UUID                   `json:"message_id"`
	CourseID  uuid.UUID                   `json:"course_id"`
	Reactions []ReactionView              `json:"reactions"`
	Counts    map[models.ReactionKind]int `json:"counts"`
}

func NewReactionState(messageID, courseID uuid.UUID, reactions []models.MessageReaction) ReactionState {
	views, counts := aggregateReactions(reactions)
	return ReactionState{
		MessageID: messageID,
		CourseID:  courseID,
		Reactions: views,
		Counts:    counts,
	}
}

func aggregateReactions(reactions []models.MessageReaction) ([]ReactionView, map[models.ReactionKind]int) {
	sorted := make([]models.MessageReaction, len(reactions))
	copy(sorted, reactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].UserID.String() < sorted[j].UserID.String()
	})

	views := make([]ReactionView, 0, len(sorted))
	counts := make(map[models.ReactionKind]int)
	for _, r := range sorted {
		views = append(views, ReactionView{UserID: r.UserID, Reaction: r.Kind})
		counts[r.Kind]++
	}
	return views, counts
}
