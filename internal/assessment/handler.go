// backend/internal/assessment/handler.go
package assessment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"assessment-system/internal/auth"
	"assessment-system/internal/catalog"
	"assessment-system/internal/scoring"
	"assessment-system/pkg/apperr"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ListQuizzes(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, apperr.New(apperr.Unauthenticated, "no resolvable principal"))
		return
	}

	var moduleID *uint
	if raw := r.URL.Query().Get("module_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			writeError(w, apperr.New(apperr.Invalid, "invalid module_id"))
			return
		}
		parsed := uint(id)
		moduleID = &parsed
	}

	quizzes, err := h.service.ListQuizzes(moduleID, principal)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"quizzes": quizzes})
}

func (h *Handler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, apperr.New(apperr.Unauthenticated, "no resolvable principal"))
		return
	}

	quizID, err := pathID(r, "quizID")
	if err != nil {
		writeError(w, err)
		return
	}

	quiz, err := h.service.GetQuiz(quizID, principal)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"quiz": quiz})
}

func (h *Handler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, apperr.New(apperr.Unauthenticated, "no resolvable principal"))
		return
	}

	var req catalog.CreateQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Wrap(apperr.Invalid, "invalid request body", err))
		return
	}

	quiz, err := h.service.CreateQuiz(req, principal)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Quiz created successfully",
		"quiz":    map[string]interface{}{"id": quiz.ID, "title": quiz.Title},
	})
}

func (h *Handler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, apperr.New(apperr.Unauthenticated, "no resolvable principal"))
		return
	}

	quizID, err := pathID(r, "quizID")
	if err != nil {
		writeError(w, err)
		return
	}

	attempt, err := h.service.StartAttempt(quizID, principal)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Attempt started",
		"attempt": map[string]interface{}{
			"id":             attempt.ID,
			"attempt_number": attempt.AttemptNumber,
			"started_at":     attempt.StartedAt,
		},
	})
}

type submitRequest struct {
	AttemptID uint                      `json:"attempt_id"`
	Answers   []scoring.SubmittedAnswer `json:"answers"`
}

func (h *Handler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, apperr.New(apperr.Unauthenticated, "no resolvable principal"))
		return
	}

	quizID, err := pathID(r, "quizID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Wrap(apperr.Invalid, "invalid request body", err))
		return
	}
	if req.AttemptID == 0 {
		writeError(w, apperr.New(apperr.Invalid, "attempt_id is required"))
		return
	}

	result, err := h.service.SubmitAttempt(quizID, req.AttemptID, req.Answers, principal)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Attempt submitted successfully",
		"result":  result,
	})
}

func (h *Handler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, apperr.New(apperr.Unauthenticated, "no resolvable principal"))
		return
	}

	quizID, err := pathID(r, "quizID")
	if err != nil {
		writeError(w, err)
		return
	}

	attempts, err := h.service.ListAttempts(quizID, principal)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"attempts": attempts})
}

func pathID(r *http.Request, name string) (uint, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, apperr.Newf(apperr.Invalid, "invalid %s", name)
	}
	return uint(id), nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError surfaces the structured taxonomy: every failure carries a
// stable kind so clients can tell retryable from terminal conditions.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)

	message := "service unavailable, please retry"
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	writeJSON(w, apperr.HTTPStatus(kind), map[string]interface{}{
		"error": map[string]string{
			"kind":    string(kind),
			"message": message,
		},
	})
}
