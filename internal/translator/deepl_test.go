package translator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDeepL_TranslateText(t *testing.T) {
	var gotAuth string
	var gotReq deeplTextReq

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/translate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"translations": []map[string]string{{"text": "Hallo Welt"}},
		})
	}))
	defer srv.Close()

	d := NewDeepL(srv.URL, "test-key")
	out, err := d.TranslateText(context.Background(), "Hello world", "auto", "de")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if out != "Hallo Welt" {
		t.Fatalf("unexpected output %q", out)
	}
	if gotAuth != "DeepL-Auth-Key test-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotReq.TargetLang != "DE" {
		t.Fatalf("target lang not uppercased: %q", gotReq.TargetLang)
	}
	if gotReq.SourceLang != "" {
		t.Fatalf("auto source must be omitted, got %q", gotReq.SourceLang)
	}
}

func TestDeepL_TranslateText_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := NewDeepL(srv.URL, "k")
	if _, err := d.TranslateText(context.Background(), "x", "en", "de"); err == nil {
		t.Fatalf("expected error on 429")
	}
}

func TestDeepL_TranslateDocument(t *testing.T) {
	var polls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v2/document" && r.Method == http.MethodPost:
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("parse multipart: %v", err)
			}
			if got := r.FormValue("target_lang"); got != "FR" {
				t.Errorf("target_lang = %q", got)
			}
			if got := r.FormValue("formality"); got != "more" {
				t.Errorf("formality = %q", got)
			}
			_ = json.NewEncoder(w).Encode(deeplDocHandle{DocumentID: "doc1", DocumentKey: "key1"})
		case r.URL.Path == "/v2/document/doc1":
			polls++
			status := "translating"
			if polls >= 2 {
				status = "done"
			}
			_ = json.NewEncoder(w).Encode(deeplDocStatus{Status: status})
		case r.URL.Path == "/v2/document/doc1/result":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["document_key"] != "key1" {
				t.Errorf("document_key = %q", body["document_key"])
			}
			_, _ = w.Write([]byte("translated-bytes"))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	d := NewDeepL(srv.URL, "k")
	d.PollInterval = 5 * time.Millisecond

	out, err := d.TranslateDocument(context.Background(), []byte("pdf-bytes"), "report.pdf", "en", "fr", "more")
	if err != nil {
		t.Fatalf("translate document: %v", err)
	}
	if string(out) != "translated-bytes" {
		t.Fatalf("unexpected result %q", out)
	}
	if polls < 2 {
		t.Fatalf("expected at least 2 status polls, got %d", polls)
	}
}

func TestDeepL_TranslateDocument_EngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v2/document":
			_ = json.NewEncoder(w).Encode(deeplDocHandle{DocumentID: "doc1", DocumentKey: "key1"})
		case strings.HasPrefix(r.URL.Path, "/v2/document/doc1"):
			_ = json.NewEncoder(w).Encode(deeplDocStatus{Status: "error", ErrorMessage: "unsupported format"})
		}
	}))
	defer srv.Close()

	d := NewDeepL(srv.URL, "k")
	d.PollInterval = time.Millisecond
	_, err := d.TranslateDocument(context.Background(), []byte("x"), "a.pdf", "auto", "de", "")
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Fatalf("expected engine error, got %v", err)
	}
}
