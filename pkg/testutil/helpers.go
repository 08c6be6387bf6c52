package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// HTTPTestCase represents an HTTP handler test case
type HTTPTestCase struct {
	Name             string
	Method           string
	Path             string
	Body             interface{}
	Headers          map[string]string
	Token            string
	WantStatus       int
	WantBodyContains []string
}

// RunHTTPTestCases runs each case against handler
func RunHTTPTestCases(t *testing.T, handler http.Handler, cases []HTTPTestCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			req := NewHTTPRequest(tc.Method, tc.Path, tc.Body)
			for k, v := range tc.Headers {
				req.Header.Set(k, v)
			}
			if tc.Token != "" {
				WithBearer(req, tc.Token)
			}

			rr := ExecuteRequest(handler, req)

			AssertStatus(t, rr, tc.WantStatus)
			for _, want := range tc.WantBodyContains {
				AssertBodyContains(t, rr, want)
			}
		})
	}
}

// NewHTTPRequest creates a new HTTP request for testing handlers
func NewHTTPRequest(method, path string, body interface{}) *http.Request {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// MultipartFile is one file part for NewMultipartRequest
type MultipartFile struct {
	Field    string
	Filename string
	Content  []byte
}

// NewMultipartRequest builds a multipart/form-data request from text fields and files
func NewMultipartRequest(t *testing.T, method, path string, fields map[string]string, files ...MultipartFile) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		require.NoError(t, err)
		_, err = part.Write(f.Content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

// WithBearer sets the Authorization header
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// ExecuteRequest executes an HTTP request and returns the response recorder
func ExecuteRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// AssertStatus asserts the response status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, rr.Code, "unexpected status code. Body: %s", rr.Body.String())
}

// AssertBodyContains asserts the response body contains a string
func AssertBodyContains(t *testing.T, rr *httptest.ResponseRecorder, expected string) {
	t.Helper()
	assert.Contains(t, rr.Body.String(), expected)
}

// ParseJSONBody parses the response body into the target
func ParseJSONBody(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	err := json.Unmarshal(rr.Body.Bytes(), target)
	require.NoError(t, err, "failed to parse response body: %s", rr.Body.String())
}
