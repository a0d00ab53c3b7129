package google

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/domain/entity"
)

var testCred = &entity.Credential{Key: "google", AccessToken: "access-1"}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newGmailServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		assert.Equal(t, "has:attachment filename:pdf", r.URL.Query().Get("q"))
		if r.URL.Query().Get("pageToken") == "" {
			writeJSON(w, map[string]interface{}{
				"messages":      []map[string]string{{"id": "m1", "threadId": "t1"}, {"id": "m2", "threadId": "t2"}},
				"nextPageToken": "page-2",
			})
			return
		}
		writeJSON(w, map[string]interface{}{
			"messages": []map[string]string{{"id": "m3", "threadId": "t3"}},
		})
	})

	mux.HandleFunc("/gmail/v1/users/me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"id": "m1",
			"payload": map[string]interface{}{
				"partId":   "",
				"mimeType": "multipart/mixed",
				"headers": []map[string]string{
					{"name": "From", "value": "EDP <billing@edp.pt>"},
					{"name": "subject", "value": "Fatura janeiro"},
				},
				"parts": []map[string]interface{}{
					{"partId": "0", "mimeType": "text/plain", "body": map[string]interface{}{"data": base64.URLEncoding.EncodeToString([]byte("see attached"))}},
					{"partId": "1", "mimeType": "application/pdf", "filename": "inv.pdf", "body": map[string]interface{}{"attachmentId": "att-1", "size": 12}},
				},
			},
		})
	})

	mux.HandleFunc("/gmail/v1/users/me/messages/m1/attachments/att-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"data": base64.RawURLEncoding.EncodeToString([]byte("%PDF-1.4 ~~?")), "size": 12})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestGmailSource_SearchFollowsPages(t *testing.T) {
	server := newGmailServer(t)
	source := NewGmailSource(server.URL, zap.NewNop())

	refs, err := source.Search(context.Background(), testCred, "has:attachment filename:pdf", 50)

	require.NoError(t, err)
	assert.Equal(t, []entity.MessageRef{{ID: "m1", ThreadID: "t1"}, {ID: "m2", ThreadID: "t2"}, {ID: "m3", ThreadID: "t3"}}, refs)
}

func TestGmailSource_SearchStopsAtMaxResults(t *testing.T) {
	server := newGmailServer(t)
	source := NewGmailSource(server.URL, zap.NewNop())

	refs, err := source.Search(context.Background(), testCred, "has:attachment filename:pdf", 2)

	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestGmailSource_FetchFullConvertsTree(t *testing.T) {
	server := newGmailServer(t)
	source := NewGmailSource(server.URL, zap.NewNop())

	msg, err := source.FetchFull(context.Background(), testCred, "m1")

	require.NoError(t, err)
	assert.Equal(t, "EDP <billing@edp.pt>", msg.From)
	assert.Equal(t, "Fatura janeiro", msg.Subject)
	require.Len(t, msg.Root.Parts, 2)
	assert.Equal(t, []byte("see attached"), msg.Root.Parts[0].Data)
	assert.Equal(t, "inv.pdf", msg.Root.Parts[1].Filename)
	assert.Equal(t, "att-1", msg.Root.Parts[1].AttachmentID)
}

func TestGmailSource_FetchAttachmentDecodes(t *testing.T) {
	server := newGmailServer(t)
	source := NewGmailSource(server.URL, zap.NewNop())

	data, err := source.FetchAttachment(context.Background(), testCred, "m1", "att-1")

	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 ~~?"), data)
}

func TestGmailSource_RequiresAccessToken(t *testing.T) {
	source := NewGmailSource("http://127.0.0.1:0", zap.NewNop())

	_, err := source.Search(context.Background(), &entity.Credential{}, "q", 10)

	assert.Error(t, err)
}

func TestDecodeBody_AcceptsPaddedAndRaw(t *testing.T) {
	raw := []byte("invoice?>")

	padded, err := decodeBody(base64.URLEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, padded)

	unpadded, err := decodeBody(base64.RawURLEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, unpadded)
}

func TestFolderQuery_EscapesQuotes(t *testing.T) {
	q := FolderQuery("D'Ouro, Lda", "root-1")

	assert.Equal(t, `name = 'D\'Ouro, Lda' and mimeType = 'application/vnd.google-apps.folder' and 'root-1' in parents and trashed = false`, q)
}
