package handler

import "net/http"

type emptyResponse struct {
	status int
}

func (e emptyResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.WriteHeader(e.status)
	return nil
}

// Empty answers 204 No Content.
func Empty() Response {
	return emptyResponse{status: http.StatusNoContent}
}

// EmptyWithStatus answers with status and no body.
func EmptyWithStatus(status int) Response {
	return emptyResponse{status: status}
}

type failedResponse struct {
	err error
}

func (f failedResponse) Render(http.ResponseWriter, *http.Request) error {
	return f.err
}

// Fail hands err to the ErrorHandler configured on Wrap instead of rendering
// it directly, so classification and logging stay in one place.
func Fail(err error) Response {
	return failedResponse{err: err}
}
