package apperr

import (
	"errors"
	"net/http"
)

// Sentinel errors shared by every layer. Wrap them with fmt.Errorf("...: %w", ErrX)
// and test with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUpstreamMalformed   = errors.New("upstream response malformed")
	ErrUpstreamRateLimited = errors.New("upstream rate limited")
	ErrEmptyInput          = errors.New("nothing to process")
	ErrExternalSync        = errors.New("external sync failed")
	ErrNoTargetList        = errors.New("external service has no list to write to")
)

// UserMessage returns a short, localized message that is safe to show to an end user.
// Upstream payloads and internal details never leak through it.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUpstreamRateLimited):
		return "El asistente está saturado. Espera un minuto y vuelve a intentarlo."
	case errors.Is(err, ErrUpstreamMalformed):
		return "La respuesta del asistente no fue válida. Inténtalo de nuevo."
	case errors.Is(err, ErrNotFound):
		return "No existe un plan para esa semana."
	case errors.Is(err, ErrEmptyInput):
		return "El plan no tiene recetas con ingredientes."
	case errors.Is(err, ErrInvalidInput):
		return "Faltan datos o no son válidos."
	case errors.Is(err, ErrNoTargetList):
		return "No hay ninguna lista en Bring! para sincronizar."
	case errors.Is(err, ErrExternalSync):
		return "No se pudo sincronizar la lista de la compra."
	default:
		return "Algo salió mal. Inténtalo de nuevo."
	}
}

// HTTPStatus maps an error to the status code used by the HTTP surface.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrEmptyInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUpstreamRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUpstreamMalformed), errors.Is(err, ErrExternalSync), errors.Is(err, ErrNoTargetList):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
