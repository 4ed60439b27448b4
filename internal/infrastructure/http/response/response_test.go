package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/taskflow/internal/domain"
	"github.com/rezkam/taskflow/internal/infrastructure/http/response"
)

// unencodable fails during JSON encoding.
type unencodable struct{}

func (unencodable) MarshalJSON() ([]byte, error) {
	return nil, errors.New("boom")
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Field string `json:"field"`
			Issue string `json:"issue"`
		} `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	return body
}

func TestSuccessResponses_EncodingFailureReturns500(t *testing.T) {
	for name, send := range map[string]func(http.ResponseWriter, any){
		"ok":      response.OK,
		"created": response.Created,
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			send(w, unencodable{})

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			body := decodeError(t, w)
			assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
			assert.Equal(t, "failed to encode response", body.Error.Message)
		})
	}
}

func TestOK_WritesJSON(t *testing.T) {
	w := httptest.NewRecorder()
	response.OK(w, map[string]any{"id": "123", "tasks": []string{}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"123","tasks":[]}`, w.Body.String())
}

func TestCreated_WritesJSON(t *testing.T) {
	w := httptest.NewRecorder()
	response.Created(w, map[string]string{"id": "new-task"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":"new-task"}`, w.Body.String())
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	response.NoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestValidationError_IncludesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	response.ValidationError(w, "title", "required field missing")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	require.Len(t, body.Error.Details, 1)
	assert.Equal(t, "title", body.Error.Details[0].Field)
	assert.Equal(t, "required field missing", body.Error.Details[0].Issue)
}

func TestFromDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
		field    string
	}{
		{"title required", domain.ErrTitleRequired, http.StatusBadRequest, "VALIDATION_ERROR", "title"},
		{"title too long", domain.ErrTitleTooLong, http.StatusBadRequest, "VALIDATION_ERROR", "title"},
		{"invalid status", domain.ErrInvalidTaskStatus, http.StatusBadRequest, "VALIDATION_ERROR", "status"},
		{"invalid filter", fmt.Errorf("%w: from: bad", domain.ErrInvalidFilter), http.StatusBadRequest, "VALIDATION_ERROR", "filter"},
		{"empty mask", domain.ErrEmptyUpdateMask, http.StatusBadRequest, "VALIDATION_ERROR", "update_mask"},
		{"unknown field", fmt.Errorf("%w: color", domain.ErrUnknownField), http.StatusBadRequest, "VALIDATION_ERROR", "update_mask"},
		{"bad etag", domain.ErrInvalidEtagFormat, http.StatusBadRequest, "VALIDATION_ERROR", "etag"},
		{"task not found", fmt.Errorf("%w: task x", domain.ErrTaskNotFound), http.StatusNotFound, "NOT_FOUND", ""},
		{"list not found", domain.ErrListNotFound, http.StatusNotFound, "NOT_FOUND", ""},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", ""},
		{"conflict", fmt.Errorf("%w: expected 1", domain.ErrVersionConflict), http.StatusConflict, "CONFLICT", ""},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)

			response.FromDomainError(w, r, tt.err)

			assert.Equal(t, tt.wantCode, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.wantBody, body.Error.Code)
			if tt.field != "" {
				require.Len(t, body.Error.Details, 1)
				assert.Equal(t, tt.field, body.Error.Details[0].Field)
			}
		})
	}
}

func TestInternalError_HidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	response.InternalError(w, r, errors.New("password=hunter2"))

	assert.NotContains(t, w.Body.String(), "hunter2")
	assert.Equal(t, "an internal error occurred", decodeError(t, w).Error.Message)
}
