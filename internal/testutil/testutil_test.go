package testutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestNewJSONRequest(t *testing.T) {
	req := NewJSONRequest(t, http.MethodPost, "/api/solve", map[string]float64{"r1": 1})
	if req.Method != http.MethodPost {
		t.Errorf("Method = %s, want POST", req.Method)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	empty := NewJSONRequest(t, http.MethodGet, "/api/version", nil)
	if empty.ContentLength != 0 {
		t.Errorf("ContentLength = %d, want 0", empty.ContentLength)
	}
}

func TestDecodeJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteString(`{"error":"boom"}`)

	var body map[string]string
	DecodeJSON(t, rec, &body)
	if body["error"] != "boom" {
		t.Errorf("decoded %v", body)
	}
}

func TestWriteTempFile(t *testing.T) {
	path := WriteTempFile(t, "table.csv", SampleTable)
	data, err := os.ReadFile(path)
	AssertNoError(t, err)
	if !strings.HasPrefix(string(data), "Freq1,") {
		t.Errorf("unexpected content %q", data)
	}
}

func TestAssertions(t *testing.T) {
	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertNoError(t, nil)
	AssertError(t, os.ErrNotExist)
}
