package gatekeeper

import (
	"crypto/subtle"

	internal_errors "github.com/bricks-cloud/keyrelay/internal/errors"
)

const jsonContentType = "application/json"

const (
	UnsupportedMediaTypeMessage = "Unsupported media type. Use 'application/json' content type"
	InvalidStreamMessage        = "The `stream` parameter must be a boolean value"
	UnauthorizedMessage         = "Unauthorized."
)

// Gatekeeper decides whether an inbound completion request may reach the
// upstream at all.
type Gatekeeper struct {
	secret []byte
}

func New(secret string) *Gatekeeper {
	return &Gatekeeper{
		secret: []byte(secret),
	}
}

// Validate runs the media type, stream and shared secret checks in that order
// and returns the first failure. body is the decoded request, the same value
// that is later filtered and forwarded.
func (g *Gatekeeper) Validate(contentType string, body map[string]interface{}, key string) error {
	if contentType != jsonContentType {
		return internal_errors.NewMediaTypeError(UnsupportedMediaTypeMessage)
	}

	switch body["stream"].(type) {
	case nil, bool:
	default:
		return internal_errors.NewValidationError(InvalidStreamMessage)
	}

	if subtle.ConstantTimeCompare([]byte(key), g.secret) != 1 {
		return internal_errors.NewAuthError(UnauthorizedMessage)
	}

	return nil
}
