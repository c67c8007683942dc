package validator

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exam-engine/internal/model"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	Setup()
	m.Run()
}

func bind(t *testing.T, body string) map[string]string {
	t.Helper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	var req model.SubmitAnswerRequest
	return Bind(c, &req)
}

func TestBindAnswerRequest(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		msg   string
	}{
		{"valid", `{"item_id":"6f1c1e0e-8a4e-4d6b-9d47-0b6a0f7b6a11","selected_option":"D"}`, "", ""},
		{"cleared option", `{"item_id":"6f1c1e0e-8a4e-4d6b-9d47-0b6a0f7b6a11","selected_option":""}`, "", ""},
		{"unknown option", `{"item_id":"6f1c1e0e-8a4e-4d6b-9d47-0b6a0f7b6a11","selected_option":"E"}`, "selected_option", "selected_option must be one of A, B, C, D"},
		{"missing item", `{"selected_option":"A"}`, "item_id", "item_id is a required field"},
		{"empty body", ``, "detail", "request body is empty"},
		{"malformed", `{"item_id":`, "detail", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := bind(t, tt.body)
			if tt.field == "" {
				if fields != nil {
					t.Fatalf("unexpected errors: %v", fields)
				}
				return
			}
			msg, ok := fields[tt.field]
			if !ok {
				t.Fatalf("no error for %q in %v", tt.field, fields)
			}
			if tt.msg != "" && msg != tt.msg {
				t.Fatalf("%s: %q, want %q", tt.field, msg, tt.msg)
			}
		})
	}
}

func TestTranslateErrorsPassesThroughOtherErrors(t *testing.T) {
	got := TranslateErrors(errors.New("boom"))
	if len(got) != 1 || got["detail"] != "boom" {
		t.Fatalf("got %v", got)
	}
}
