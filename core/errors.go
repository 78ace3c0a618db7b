package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	WebhookErrorUnauthorized         = "WEBHOOK_UNAUTHORIZED"
	WebhookErrorMalformedInput       = "WEBHOOK_MALFORMED_INPUT"
	WebhookErrorHandlerFailed        = "WEBHOOK_HANDLER_FAILED"
	WebhookErrorConfigurationInvalid = "WEBHOOK_CONFIGURATION_INVALID"
	WebhookErrorUpstreamFailed       = "WEBHOOK_UPSTREAM_FAILED"
	WebhookErrorConflict             = "WEBHOOK_CONFLICT"
	WebhookErrorInternal             = "WEBHOOK_INTERNAL_ERROR"
)

// AuthenticationFailure carries no detail about which check failed; callers
// must not echo the message to the sender.
func AuthenticationFailure(message string, metadata map[string]any) *goerrors.Error {
	return newWebhookError(message, goerrors.CategoryAuth, http.StatusUnauthorized, WebhookErrorUnauthorized, metadata)
}

func MalformedInput(source error, message string, metadata map[string]any) *goerrors.Error {
	return wrapWebhookError(source, message, goerrors.CategoryBadInput, http.StatusBadRequest, WebhookErrorMalformedInput, metadata)
}

func HandlerFailure(source error, message string, metadata map[string]any) *goerrors.Error {
	return wrapWebhookError(source, message, goerrors.CategoryOperation, http.StatusInternalServerError, WebhookErrorHandlerFailed, metadata)
}

func UpstreamFailure(source error, message string, metadata map[string]any) *goerrors.Error {
	return wrapWebhookError(source, message, goerrors.CategoryExternal, http.StatusBadGateway, WebhookErrorUpstreamFailed, metadata)
}

func ConfigurationFailure(field string, message string) *goerrors.Error {
	err := goerrors.NewValidation(message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusInternalServerError).
		WithTextCode(WebhookErrorConfigurationInvalid)
	return err
}

func InternalFailure(message string, metadata map[string]any) *goerrors.Error {
	return newWebhookError(message, goerrors.CategoryInternal, http.StatusInternalServerError, WebhookErrorInternal, metadata)
}

func ConflictFailure(message string, metadata map[string]any) *goerrors.Error {
	return newWebhookError(message, goerrors.CategoryConflict, http.StatusConflict, WebhookErrorConflict, metadata)
}

// StatusCode resolves the HTTP status a boundary should answer with for err.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	mapped := MapError(err)
	if mapped == nil || mapped.Code == 0 {
		return http.StatusInternalServerError
	}
	return mapped.Code
}

// MapError returns err as a go-errors envelope, mapping plain errors through
// the default mappers.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureWebhookErrorEnvelope(richErr)
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureWebhookErrorEnvelope(mapped)
}

func newWebhookError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func wrapWebhookError(
	source error,
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	if source == nil {
		return newWebhookError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func ensureWebhookErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = webhookHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultWebhookTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultWebhookTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return WebhookErrorMalformedInput
	case goerrors.CategoryValidation:
		return WebhookErrorConfigurationInvalid
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return WebhookErrorUnauthorized
	case goerrors.CategoryConflict:
		return WebhookErrorConflict
	case goerrors.CategoryOperation:
		return WebhookErrorHandlerFailed
	case goerrors.CategoryExternal:
		return WebhookErrorUpstreamFailed
	default:
		return WebhookErrorInternal
	}
}

func webhookHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return http.StatusUnauthorized
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
