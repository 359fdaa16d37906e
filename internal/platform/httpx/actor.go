package httpx

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// ActorHeader carries the acting user's id on every mutating request.
const ActorHeader = "X-Actor-ID"

// ErrNoActor indicates the actor header is missing or malformed.
var ErrNoActor = errors.New("httpx: missing or invalid actor id")

// ActorID extracts the acting user from the request headers.
func ActorID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(ActorHeader)
	if raw == "" {
		return uuid.Nil, ErrNoActor
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrNoActor
	}
	return id, nil
}
