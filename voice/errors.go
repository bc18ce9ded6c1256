package voice

import "github.com/pkg/errors"

// ErrorCode classifies why a capture session could not start or had to end.
// Each code maps to one user-facing message.
type ErrorCode string

const (
	CodePermissionDenied ErrorCode = "permission_denied"
	CodeNoDevice         ErrorCode = "no_device"
	CodeDeviceBusy       ErrorCode = "device_busy"
	CodeUnsupported      ErrorCode = "unsupported"
	CodeAcquireTimeout   ErrorCode = "acquire_timeout"
	CodeTooShort         ErrorCode = "too_short"
	CodeEngine           ErrorCode = "engine_error"
	CodeInternal         ErrorCode = "internal"
)

// Error is a capture failure with a classified code.
type Error struct {
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err under the given code.
func NewError(code ErrorCode, err error) *Error {
	return &Error{Code: code, Err: err}
}

// CodeOf extracts the error code, defaulting to CodeInternal for anything
// unclassified.
func CodeOf(err error) ErrorCode {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return CodeInternal
}

var messages = map[ErrorCode]string{
	CodePermissionDenied: "Bitte erlauben Sie den Zugriff auf das Mikrofon.",
	CodeNoDevice:         "Es wurde kein Mikrofon gefunden.",
	CodeDeviceBusy:       "Das Mikrofon wird bereits von einer anderen Anwendung verwendet.",
	CodeUnsupported:      "Audioaufnahme wird in dieser Umgebung nicht unterstützt.",
	CodeAcquireTimeout:   "Das Mikrofon konnte nicht rechtzeitig aktiviert werden. Bitte versuchen Sie es erneut.",
	CodeTooShort:         "Die Aufnahme war zu kurz oder es wurde keine Sprache erkannt.",
	CodeEngine:           "Die Spracherkennung wurde unerwartet beendet. Bitte starten Sie die Aufnahme erneut.",
}

const genericMessage = "Fehler bei der Verarbeitung der Sprachaufnahme. Bitte versuchen Sie es erneut."

// MessageFor returns the localized user-facing message for a code.
func MessageFor(code ErrorCode) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return genericMessage
}

// Message returns the localized user-facing message for an error.
func Message(err error) string {
	return MessageFor(CodeOf(err))
}
