package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const (
	// ProtocolVersion is the version of the HTTP object transport.
	ProtocolVersion = "1"

	headerProtocol = "Vctrl-Protocol"
)

// Error codes carried in RemoteError.Code.
const (
	codeBadRequest    = "bad_request"
	codeUnauthorized  = "unauthorized"
	codeNotFound      = "not_found"
	codeCorrupt       = "corrupt_object"
	codeMissingObject = "missing_object"
	codeConflict      = "conflict"
	codeInternal      = "internal"
)

// RemoteError is a structured error from the remote server.
type RemoteError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
	Detail  string `json:"detail,omitempty"`
}

func (e *RemoteError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s): %s", e.Message, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// IsNotFound reports whether err is a RemoteError for a missing resource.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && (re.Code == codeNotFound || re.Status == http.StatusNotFound)
}

// tryParseRemoteError attempts to parse a JSON error response body.
func tryParseRemoteError(status int, body []byte) *RemoteError {
	var re RemoteError
	if err := json.Unmarshal(body, &re); err != nil {
		return nil
	}
	if re.Message == "" && re.Code == "" {
		return nil
	}
	re.Status = status
	return &re
}

// refUpdateRequest is the body of PUT /refs/<name>.
type refUpdateRequest struct {
	Oid string `json:"oid"`
}
