package sandbox

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appErr "cryptoj/pkg/errors"
)

func newTestServer(t *testing.T) (*httptest.Server, map[string][]byte) {
	t.Helper()
	files := map[string][]byte{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /run", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		results := make([]Result, len(req.Cmd))
		for i := range results {
			results[i] = Result{Status: StatusAccepted, Time: 1e6, Memory: 4096}
		}
		json.NewEncoder(w).Encode(results)
	})
	mux.HandleFunc("POST /file", func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		files["handle-1"] = data
		json.NewEncoder(w).Encode("handle-1")
	})
	mux.HandleFunc("GET /file/{id}", func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(data)
	})
	mux.HandleFunc("DELETE /file/{id}", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := files[r.PathValue("id")]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(files, r.PathValue("id"))
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, files
}

func TestClientFileLifecycle(t *testing.T) {
	server, files := newTestServer(t)
	client, err := NewClient(Config{Endpoint: server.URL, Token: "secret"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := t.Context()

	id, err := client.UploadFile(ctx, strings.NewReader("stdin content"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if id != "handle-1" {
		t.Errorf("handle = %q", id)
	}

	data, err := client.ReadFile(ctx, id)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "stdin content" {
		t.Errorf("content = %q", data)
	}

	if err := client.DeleteFile(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("file not deleted server-side")
	}
	if _, err := client.ReadFile(ctx, id); !appErr.Is(err, appErr.SandboxError) {
		t.Errorf("expected sandbox error after delete, got %v", err)
	}
}

func TestClientRun(t *testing.T) {
	server, _ := newTestServer(t)
	client, err := NewClient(Config{Endpoint: server.URL, Token: "secret"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	results, err := client.Run(t.Context(), Request{Cmd: []Cmd{{Args: []string{"true"}}}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 1 || results[0].Status != StatusAccepted {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestClientRejectsBadToken(t *testing.T) {
	server, _ := newTestServer(t)
	client, err := NewClient(Config{Endpoint: server.URL, Token: "wrong"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Run(t.Context(), Request{Cmd: []Cmd{{Args: []string{"true"}}}})
	if !appErr.Is(err, appErr.SandboxError) {
		t.Fatalf("expected sandbox error, got %v", err)
	}
}

func TestClientRequiresEndpoint(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}
