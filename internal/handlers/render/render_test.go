package render

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Serve single response rendered by fn and return status and body
func serve(t *testing.T, fn http.HandlerFunc) (*http.Response, string) {
	t.Helper()

	ts := httptest.NewServer(fn)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/test")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(body)
}

func TestRender_Responses(t *testing.T) {
	tests := []struct {
		name           string
		render         func(w http.ResponseWriter)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "json",
			render:         func(w http.ResponseWriter) { JSON(w, map[string]any{"key1": 1, "key2": "222"}) },
			expectedStatus: http.StatusOK,
			expectedBody:   `{"key1":1,"key2":"222"}`,
		},
		{
			name:           "json with status",
			render:         func(w http.ResponseWriter) { JSONStatus(w, map[string]string{"message": "created"}, http.StatusCreated) },
			expectedStatus: http.StatusCreated,
			expectedBody:   `{"message":"created"}`,
		},
		{
			name:           "service error",
			render:         func(w http.ResponseWriter) { ServiceError(w, "something terrible happened", http.StatusForbidden) },
			expectedStatus: http.StatusForbidden,
			expectedBody:   `{"error": "service_error", "message": "something terrible happened"}`,
		},
		{
			name:           "not encodable",
			render:         func(w http.ResponseWriter) { JSON(w, map[string]any{"fn": func() {}}) },
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := serve(t, func(w http.ResponseWriter, _ *http.Request) { tt.render(w) })

			require.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedBody == "" {
				return
			}
			assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
			assert.JSONEq(t, tt.expectedBody, body)
		})
	}
}

func TestRender_DecodeError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		value := struct {
			Key      string `json:"key"`
			Attempts int    `json:"attempts"`
		}{}

		err := json.NewDecoder(r.Body).Decode(&value)
		require.Error(t, err, "Please check what JSON was sent. Test expected that it is invalid")
		DecodeError(w, err)
	}))
	defer ts.Close()

	tests := []struct {
		name        string
		requestBody string
		expected    string
	}{
		{
			name:        "json parsing error",
			requestBody: `invalid-json`,
			expected: `{
				"error":"decoding_failed",
				"message": "Failed to parse JSON: invalid character 'i' looking for beginning of value"
			}`,
		},
		{
			name:        "empty body",
			requestBody: ``,
			expected: `{
				"error":"decoding_failed",
				"message": "Failed to parse JSON: EOF"
			}`,
		},
		{
			name:        "invalid type ok",
			requestBody: `{"key": "valid_json", "attempts": "but incorrect type"}`,
			expected: `{
				"error": "decoding_failed",
				"message": "Invalid data type for field 'attempts'"
			}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/test", "application/json", strings.NewReader(tc.requestBody))
			require.NoError(t, err)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			defer resp.Body.Close() //nolint:errcheck

			assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
			assert.JSONEq(t, tc.expected, string(body))
		})
	}
}

func TestRender_ValidationErrors(t *testing.T) {
	validate := validator.New()

	type T struct {
		Username string `validate:"required"`
		Password string `validate:"min=6"`
		Email    string `validate:"email"`
		Bio      string `validate:"max=3"`
		Code     string `validate:"len=2"`
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		invalidData := T{
			Password: "123",
			Email:    "not-valid-email",
			Bio:      "too long",
			Code:     "abc",
		}

		err := validate.Struct(invalidData)
		require.Error(t, err, "test expects that data not pass validation")
		errs, ok := err.(validator.ValidationErrors)
		require.True(t, ok, "be sure you pass structure to validator")
		ValidationErrors(w, errs)
	}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/test")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	expected, err := json.Marshal(struct {
		Error   string            `json:"error"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}{
		Error:   "validation_failed",
		Message: "Request validation failed",
		Fields: map[string]string{
			"Username": "This field is required",
			"Password": "Value is too short (minimum 6)",
			"Email":    "Please provide a valid email address",
			"Bio":      "Value is too long (maximum 3)",
			"Code":     "Invalid value", // Unknown validation tag failed: default validation error message
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, string(expected), string(body))
}

type bindRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *bindRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

func TestRender_BindAndValidate(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "valid request",
			requestBody:    `{"email": "john@test.com"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"email": "john@test.com"}`,
		},
		{
			name:           "normalized before validation",
			requestBody:    `{"email": "  john@test.com  "}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"email": "john@test.com"}`,
		},
		{
			name:           "invalid json",
			requestBody:    `invalid-json`,
			expectedStatus: http.StatusBadRequest,
			expectedBody: `{
				"error": "decoding_failed",
				"message": "Failed to parse JSON: invalid character 'i' looking for beginning of value"
			}`,
		},
		{
			name:           "too large body",
			requestBody:    `{"email": "` + strings.Repeat("a", maxBodyBytes) + `"}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody: `{
				"error": "decoding_failed",
				"message": "Request body is too large (maximum 1048576 bytes)"
			}`,
		},
		{
			name:           "validation failed uses json names",
			requestBody:    `{"email": "   "}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody: `{
				"error": "validation_failed",
				"message": "Request validation failed",
				"fields": {
					"email": "This field is required"
				}
			}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				data, err := BindAndValidate[bindRequest](w, r)
				if err != nil {
					return // Error response already written
				}
				JSON(w, map[string]string{"email": data.Email})
			}))
			defer ts.Close()

			resp, err := http.Post(ts.URL+"/test", "application/json", strings.NewReader(tc.requestBody))
			require.NoError(t, err)
			require.Equal(t, tc.expectedStatus, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			defer resp.Body.Close() //nolint:errcheck

			assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
			assert.JSONEq(t, tc.expectedBody, string(body))
		})
	}
}
