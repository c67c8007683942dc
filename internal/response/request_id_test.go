package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { Success(c, http.StatusOK, nil) })

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"generated when absent", "", false},
		{"caller id kept", "attempt-42_retry.1", true},
		{"header injection replaced", "abc\r\nSet-Cookie: x", false},
		{"too long replaced", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderRequestID, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(HeaderRequestID)
			if tt.keep {
				if got != tt.header {
					t.Fatalf("request id = %q, want %q", got, tt.header)
				}
			} else if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("request id = %q, want a generated uuid", got)
			}

			var env Response
			if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Metadata.RequestID != got {
				t.Fatalf("metadata request_id = %q, header = %q", env.Metadata.RequestID, got)
			}
		})
	}
}
