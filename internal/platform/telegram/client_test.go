package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	var gotPath string
	var got sendMessageReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient("TOKEN", WithBaseURL(srv.URL+"/"))
	err := c.SendMessage(context.Background(), 42, "High risk assessment")

	require.NoError(t, err)
	assert.Equal(t, "/botTOKEN/sendMessage", gotPath)
	assert.Equal(t, int64(42), got.ChatID)
	assert.Equal(t, "High risk assessment", got.Text)
}

func TestSendDocument(t *testing.T) {
	var chatID, fileName string
	var content []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendDocument" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		chatID = r.FormValue("chat_id")
		f, hdr, err := r.FormFile("document")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		fileName = hdr.Filename
		content, _ = io.ReadAll(f)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient("TOKEN", WithBaseURL(srv.URL))
	err := c.SendDocument(context.Background(), -1001, []byte("%PDF-1.4"), "report.pdf")

	require.NoError(t, err)
	assert.Equal(t, "-1001", chatID)
	assert.Equal(t, "report.pdf", fileName)
	assert.Equal(t, []byte("%PDF-1.4"), content)
}

func TestSendMessageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	c := NewClient("TOKEN", WithBaseURL(srv.URL))
	err := c.SendMessage(context.Background(), 1, "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}
