package httpapi

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"testing"
)

func TestDocumentCRUD(t *testing.T) {
	env := newTestEnv(t)

	doc := env.createDocument(t, env.userToken, "notes", "first paragraph\n\nsecond paragraph", nil)
	if doc.IngestionStatus != "success" {
		t.Fatalf("ingestion status: %s", doc.IngestionStatus)
	}
	if doc.OwnerID != env.user.ID {
		t.Fatalf("owner: %s", doc.OwnerID)
	}

	t.Run("retrieve", func(t *testing.T) {
		resp := env.get(t, "/documents/"+doc.ID, env.userToken)
		requireStatus(t, resp, http.StatusOK)
		got := decodeJSON[documentDTO](t, resp)
		if got.Title != "notes" {
			t.Fatalf("title: %s", got.Title)
		}
	})

	t.Run("chunks paginate", func(t *testing.T) {
		resp := env.get(t, "/documents/"+doc.ID+"/chunks?limit=1", env.userToken)
		requireStatus(t, resp, http.StatusOK)
		page := decodeJSON[listResponse[chunkDTO]](t, resp)
		if page.TotalEntries != 2 || len(page.Results) != 1 {
			t.Fatalf("page: total=%d len=%d", page.TotalEntries, len(page.Results))
		}
		if page.Results[0].Text != "first paragraph" {
			t.Fatalf("chunk text: %q", page.Results[0].Text)
		}
	})

	t.Run("download", func(t *testing.T) {
		resp := env.get(t, "/documents/"+doc.ID+"/download", env.userToken)
		requireStatus(t, resp, http.StatusOK)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if string(body) != "first paragraph\n\nsecond paragraph" {
			t.Fatalf("download body: %q", body)
		}
	})

	t.Run("update title", func(t *testing.T) {
		resp := env.post(t, "/documents/"+doc.ID, env.userToken, map[string]string{"title": "notes v2"})
		requireStatus(t, resp, http.StatusOK)
		got := decodeJSON[documentDTO](t, resp)
		if got.Title != "notes v2" {
			t.Fatalf("title: %s", got.Title)
		}
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		other, _ := env.store.CreateUser(envUser("other@test"))
		token, _ := env.issuer.IssueAccessToken(other)
		resp := env.get(t, "/documents/"+doc.ID, token)
		requireStatus(t, resp, http.StatusForbidden)
	})

	t.Run("admin can read anyone's document", func(t *testing.T) {
		resp := env.get(t, "/documents/"+doc.ID, env.adminToken)
		requireStatus(t, resp, http.StatusOK)
	})

	t.Run("delete", func(t *testing.T) {
		resp := env.delete(t, "/documents/"+doc.ID, env.userToken)
		requireStatus(t, resp, http.StatusOK)
		resp = env.get(t, "/documents/"+doc.ID, env.userToken)
		requireStatus(t, resp, http.StatusNotFound)
	})
}

func TestDocumentValidation(t *testing.T) {
	env := newTestEnv(t)

	t.Run("no content", func(t *testing.T) {
		resp := env.post(t, "/documents", env.userToken, map[string]string{"title": "empty"})
		requireStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("no title", func(t *testing.T) {
		resp := env.post(t, "/documents", env.userToken, map[string]string{"raw_text": "hello"})
		requireStatus(t, resp, http.StatusBadRequest)
	})
}

func TestDocumentListScoping(t *testing.T) {
	env := newTestEnv(t)
	env.createDocument(t, env.userToken, "mine", "user text", nil)
	env.createDocument(t, env.adminToken, "admins", "admin text", nil)

	t.Run("user sees only own", func(t *testing.T) {
		resp := env.get(t, "/documents", env.userToken)
		requireStatus(t, resp, http.StatusOK)
		page := decodeJSON[listResponse[documentDTO]](t, resp)
		if page.TotalEntries != 1 || page.Results[0].Title != "mine" {
			t.Fatalf("page: %+v", page)
		}
	})

	t.Run("admin sees all", func(t *testing.T) {
		resp := env.get(t, "/documents", env.adminToken)
		requireStatus(t, resp, http.StatusOK)
		page := decodeJSON[listResponse[documentDTO]](t, resp)
		if page.TotalEntries != 2 {
			t.Fatalf("total: %d", page.TotalEntries)
		}
	})
}

func TestDocumentMultipartUpload(t *testing.T) {
	env := newTestEnv(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "report.txt")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = io.WriteString(part, "uploaded body\n\nwith two paragraphs")
	_ = mw.WriteField("metadata", `{"source":"upload"}`)
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/documents", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.userToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	requireStatus(t, resp, http.StatusOK)
	doc := decodeJSON[documentDTO](t, resp)
	if doc.Title != "report.txt" {
		t.Fatalf("title should default to filename, got %q", doc.Title)
	}
	if doc.Metadata["source"] != "upload" {
		t.Fatalf("metadata: %v", doc.Metadata)
	}

	chunks := decodeJSON[listResponse[chunkDTO]](t, mustOK(t, env.get(t, "/documents/"+doc.ID+"/chunks", env.userToken)))
	if chunks.TotalEntries != 2 {
		t.Fatalf("chunks: %d", chunks.TotalEntries)
	}
}

func mustOK(t *testing.T, resp *http.Response) *http.Response {
	t.Helper()
	requireStatus(t, resp, http.StatusOK)
	return resp
}
