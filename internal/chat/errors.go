package chat

import "github.com/pkg/errors"

type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindAccessDenied
	KindValidation
	KindNotFound
	KindExpired
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication_failed"
	case KindAccessDenied:
		return "access_denied"
	case KindValidation:
		return "validation_failed"
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	default:
		return "internal_error"
	}
}

// Error — доменная ошибка чата. Сообщение показывается клиенту как есть
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ErrorCode возвращает машиночитаемый код для клиента
func (e *Error) ErrorCode() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.String()
}

// Is: совпадение по Kind, а если у target задан Code — ещё и по Code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

var (
	// Аутентификация
	ErrMissingCredential = &Error{Kind: KindAuthentication, Code: "missing_credential", Message: "authentication token is missing"}
	ErrExpiredCredential = &Error{Kind: KindAuthentication, Code: "expired_credential", Message: "authentication token has expired, please log in again"}
	ErrInvalidCredential = &Error{Kind: KindAuthentication, Code: "invalid_credential", Message: "authentication token is invalid"}
	ErrUnknownUser       = &Error{Kind: KindAuthentication, Code: "unknown_user", Message: "user for this token does not exist"}

	// Доступ
	ErrAccessDenied = &Error{Kind: KindAccessDenied, Message: "access denied"}
	ErrNotInRoom    = &Error{Kind: KindAccessDenied, Code: "not_in_room", Message: "join the course room first"}

	// Не найдено
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "not found"}
	ErrCourseNotFound  = &Error{Kind: KindNotFound, Code: "course_not_found", Message: "course not found"}
	ErrMessageNotFound = &Error{Kind: KindNotFound, Code: "message_not_found", Message: "message not found"}
	ErrUserNotFound    = &Error{Kind: KindNotFound, Code: "user_not_found", Message: "user not found"}

	ErrEditWindowExpired = &Error{Kind: KindExpired, Code: "edit_window_expired", Message: "message can no longer be edited"}

	// Валидация
	ErrValidation         = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrEmptyContent       = &Error{Kind: KindValidation, Code: "empty_content", Message: "message content cannot be empty"}
	ErrContentTooLong     = &Error{Kind: KindValidation, Code: "content_too_long", Message: "message content cannot exceed 2000 characters"}
	ErrInvalidMessageType = &Error{Kind: KindValidation, Code: "invalid_message_type", Message: "unknown message type"}
	ErrInvalidReply       = &Error{Kind: KindValidation, Code: "invalid_reply", Message: "reply must reference an existing message in the same course"}
	ErrInvalidReaction    = &Error{Kind: KindValidation, Code: "invalid_reaction", Message: "unknown reaction"}
	ErrSearchTermTooShort = &Error{Kind: KindValidation, Code: "search_term_too_short", Message: "search term must be at least 2 characters"}
	ErrInvalidCursor      = &Error{Kind: KindValidation, Code: "invalid_cursor", Message: "invalid pagination cursor"}
	ErrInvalidPayload     = &Error{Kind: KindValidation, Code: "invalid_payload", Message: "invalid message format"}

	ErrInternal = &Error{Kind: KindInternal, Code: "internal_error", Message: "internal server error"}
)

func denied(message string) *Error {
	return &Error{Kind: KindAccessDenied, Code: "access_denied", Message: message}
}

// AsError приводит любую ошибку к *Error; всё неизвестное — внутренняя ошибка
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return ErrInternal
}
