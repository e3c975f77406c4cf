package httpx

import (
	"net/http"

	"github.com/atlas-accounts/atlas-accounts/internal/shared"
)

// Error renders err through the uniform error envelope. The HTTP status is
// derived from the service error, never from the transport layer.
func Error(w http.ResponseWriter, err error) {
	se := shared.AsServiceError(err)
	JSON(w, se.Status, Envelope{Status: "error", Data: se})
}
