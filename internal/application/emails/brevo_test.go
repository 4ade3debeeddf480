package emails

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrevoClient_NoAPIKeyIsNoop(t *testing.T) {
	c := &BrevoClient{BaseURL: "http://127.0.0.1:1"}
	err := c.SendApplicationAccepted(context.Background(), "a@b.com", "A", Settlement{PropertyTitle: "X"})
	assert.NoError(t, err)
}

func TestBrevoClient_SendsRenderedEmail(t *testing.T) {
	var got BrevoSendRequest
	var apiKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := &BrevoClient{APIKey: "key", MailFrom: "ops@brickshare.io", BaseURL: srv.URL}
	err := c.SendApplicationRejected(context.Background(), "bob@example.com", "Bob", Settlement{
		PropertyTitle: "Harbour <Lofts>",
		Step:          1,
		Amount:        "$5000.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "key", apiKey)
	assert.Equal(t, "ops@brickshare.io", got.Sender.Email)
	require.Len(t, got.To, 1)
	assert.Equal(t, "bob@example.com", got.To[0].Email)
	assert.Contains(t, got.Subject, "Harbour <Lofts>")
	assert.Contains(t, got.HTMLContent, "Harbour &lt;Lofts&gt;")
	assert.Contains(t, got.HTMLContent, "$5000.00")
}

func TestBrevoClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := &BrevoClient{APIKey: "key", BaseURL: srv.URL}
	err := c.SendPropertyFinalized(context.Background(), "a@b.com", "", Settlement{PropertyTitle: "X"})
	assert.Error(t, err)
}
