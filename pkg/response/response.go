// Package response implements the tagged Success/BadRequest JSON envelope
// every HTTP route in this service responds with, each carrying a freshly
// generated trace id. The trace id appears only in the response body; it is
// not written to log lines.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// Envelope is the wire shape of every response body: a "tag" discriminating
// Success from BadRequest, the payload under "data", and a per-request
// "trace_id".
type Envelope struct {
	Tag     string      `json:"tag"`
	Data    interface{} `json:"data"`
	TraceID string      `json:"trace_id"`
}

// Success writes a 200 response tagged "Success" with data as its payload.
func Success(w http.ResponseWriter, data interface{}) {
	write(w, http.StatusOK, Envelope{Tag: "Success", Data: data, TraceID: newTraceID()})
}

// BadRequestMessage is the payload shape carried by a BadRequest envelope.
type BadRequestMessage struct {
	Message string `json:"message"`
}

// BadRequest writes a 400 response tagged "BadRequest" carrying message.
func BadRequest(w http.ResponseWriter, message string) {
	write(w, http.StatusBadRequest, Envelope{
		Tag:     "BadRequest",
		Data:    BadRequestMessage{Message: message},
		TraceID: newTraceID(),
	})
}

// InternalError writes a 500 response tagged "BadRequest" — this service
// does not distinguish server faults from client faults in its response
// tag, matching the original implementation's two-variant envelope.
func InternalError(w http.ResponseWriter, message string) {
	write(w, http.StatusInternalServerError, Envelope{
		Tag:     "BadRequest",
		Data:    BadRequestMessage{Message: message},
		TraceID: newTraceID(),
	})
}

func write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func newTraceID() string {
	return uuid.New().String()
}
