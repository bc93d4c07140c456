package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jason-s-yu/pobudka/internal/game"
	"github.com/sirupsen/logrus"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Code    game.Code `json:"code"`
	Message string    `json:"message"`
}

// statusFor maps an error classification to its HTTP status.
func statusFor(code game.Code) int {
	switch code {
	case game.CodeInvalidActionShape, game.CodeUnknownActionType:
		return http.StatusBadRequest
	case game.CodeRoomNotFound:
		return http.StatusNotFound
	case game.CodeIdempotencyConflict, game.CodeRoomExists:
		return http.StatusConflict
	case game.CodeNotYourTurn:
		return http.StatusForbidden
	case game.CodeWrongPhase, game.CodeInvalidTarget, game.CodeInsufficientPlayers, game.CodeInsufficientCards:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorFor converts err into its client-facing form. Unclassified errors never
// leak their message.
func errorFor(err error) (int, errorBody) {
	code := game.CodeOf(err)
	status := statusFor(code)
	if code == "" || status == http.StatusInternalServerError {
		return status, errorBody{Code: code, Message: "internal error"}
	}
	return status, errorBody{Code: code, Message: err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, logger *logrus.Logger, err error) {
	status, body := errorFor(err)
	if status == http.StatusInternalServerError {
		logger.WithError(err).Error("request failed")
	}
	writeJSON(w, status, body)
}
