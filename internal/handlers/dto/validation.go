package dto

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/internal/models"
)

// RegisterValidators добавляет теги reaction и message_type в валидатор gin
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("dto: unexpected validator engine")
	}
	if err := v.RegisterValidation("reaction", func(fl validator.FieldLevel) bool {
		return models.ReactionKind(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("message_type", func(fl validator.FieldLevel) bool {
		return models.MessageType(fl.Field().String()).Valid()
	})
}

// Validate проверяет структуру тем же валидатором, что и биндинг gin (для WS-событий)
func Validate(obj interface{}) error {
	return ValidationError(binding.Validator.ValidateStruct(obj))
}

// ValidationError переводит ошибки биндинга в доменные ошибки валидации
func ValidationError(err error) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return chat.ErrInvalidPayload
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "reaction":
			return chat.ErrInvalidReaction
		case "message_type":
			return chat.ErrInvalidMessageType
		}
		fields = append(fields, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}

	return &chat.Error{
		Kind:    chat.KindValidation,
		Code:    chat.ErrInvalidPayload.Code,
		Message: "invalid request: " + strings.Join(fields, ", "),
	}
}
