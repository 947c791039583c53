package ingestion

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

func previewRequest(t *testing.T, relation, fileName, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.WriteField("relation", relation); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/ingest/preview", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestPreviewHandlerInvoices(t *testing.T) {
	handler := NewHTTPHandler(NewService())

	csvData := `legal_entity,counter_party,rating,status,value
LE1,CP1,5,ARAP,100
LE1,CP1,bad,ARAP,100
`
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, previewRequest(t, "invoices", "invoices.csv", csvData))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var summary Summary
	if err := json.NewDecoder(recorder.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalRows != 2 || summary.ValidRows != 1 || summary.InvalidRows != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestPreviewHandlerUnknownRelation(t *testing.T) {
	handler := NewHTTPHandler(NewService())

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, previewRequest(t, "other", "file.csv", "counter_party,tier\nCP1,1\n"))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestPreviewHandlerRejectsNonPost(t *testing.T) {
	handler := NewHTTPHandler(NewService())

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ingest/preview", nil))

	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}
