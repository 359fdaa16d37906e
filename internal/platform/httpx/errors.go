package httpx

import "net/http"

// Shorthand problem responses. Handlers translate their domain sentinels to
// one of these; anything unmapped falls through to Internal, which never
// echoes the underlying error.

func BadRequest(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusBadRequest, "Bad Request", detail)
}

func Unprocessable(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusUnprocessableEntity, "Unprocessable", detail)
}

func NotFound(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusNotFound, "Not Found", detail)
}

func Conflict(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusConflict, "Conflict", detail)
}

func Internal(w http.ResponseWriter) {
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
