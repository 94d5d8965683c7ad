package errors

// Each rejection class carries a marker method so handlers can match on
// behavior instead of concrete types.

type AuthError struct {
	message string
}

func NewAuthError(msg string) *AuthError {
	return &AuthError{message: msg}
}

func (ae *AuthError) Error() string {
	return ae.message
}

func (ae *AuthError) Authenticated() {}

// ValidationError rejects a request body field.
type ValidationError struct {
	message string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{message: msg}
}

func (ve *ValidationError) Error() string {
	return ve.message
}

func (ve *ValidationError) Validation() {}

// MediaTypeError rejects a request whose content type the proxy does not
// accept.
type MediaTypeError struct {
	message string
}

func NewMediaTypeError(msg string) *MediaTypeError {
	return &MediaTypeError{message: msg}
}

func (me *MediaTypeError) Error() string {
	return me.message
}

func (me *MediaTypeError) MediaType() {}
