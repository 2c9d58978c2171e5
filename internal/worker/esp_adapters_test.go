package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

func testMessage() *domain.EmailMessage {
	return &domain.EmailMessage{
		RecordID:    "rec-1",
		CampaignID:  "camp-1",
		Recipient:   "to@example.com",
		ToName:      "To Person",
		FromName:    "Sender",
		FromEmail:   "from@example.com",
		Subject:     "Hello",
		HTMLContent: "<p>Hi</p>",
	}
}

func TestSendGridSend(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/mail/send", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Header().Set("X-Message-Id", "sg-msg-123")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewSendGridSender("SG.test-key")
	s.baseURL = srv.URL

	out, err := s.Send(context.Background(), testMessage())
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, "sg-msg-123", out.MessageID)
	assert.Equal(t, "to@example.com", out.Recipient)
	assert.False(t, out.SentAt.IsZero())
	assert.Equal(t, "Bearer SG.test-key", gotAuth)
	assert.Equal(t, "Hello", gotPayload["subject"])

	pers := gotPayload["personalizations"].([]interface{})[0].(map[string]interface{})
	args := pers["custom_args"].(map[string]interface{})
	assert.Equal(t, "rec-1", args["record_id"])
	assert.Equal(t, "camp-1", args["campaign_id"])
}

func TestSendGridRejectionAsOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"message":"does not contain a valid address"}]}`))
	}))
	defer srv.Close()

	s := NewSendGridSender("SG.test-key")
	s.baseURL = srv.URL

	out, err := s.Send(context.Background(), testMessage())
	require.NoError(t, err, "provider rejections are outcome data, not errors")

	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "400")
	assert.Contains(t, out.Error, "valid address")
}

func TestSendGridMissingKey(t *testing.T) {
	s := NewSendGridSender("")
	_, err := s.Send(context.Background(), testMessage())
	assert.Error(t, err, "misconfiguration is an error, not an outcome")
}

func TestMailgunSend(t *testing.T) {
	var gotForm map[string][]string
	var gotUser, gotPass string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/mg.example.com/messages", r.URL.Path)
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		json.NewEncoder(w).Encode(map[string]string{
			"id":      "<20260901.mg-msg-456@mg.example.com>",
			"message": "Queued. Thank you.",
		})
	}))
	defer srv.Close()

	s := NewMailgunSender("mg-test-key", "mg.example.com")
	s.baseURL = srv.URL

	out, err := s.Send(context.Background(), testMessage())
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, "20260901.mg-msg-456@mg.example.com", out.MessageID, "angle brackets are stripped")
	assert.Equal(t, "api", gotUser)
	assert.Equal(t, "mg-test-key", gotPass)
	assert.Equal(t, "To Person <to@example.com>", gotForm["to"][0])
	assert.Equal(t, "rec-1", gotForm["v:record_id"][0])
	assert.Equal(t, "camp-1", gotForm["v:campaign_id"][0])
}

func TestMailgunRejectionAsOutcome(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid private key"}`))
	}))
	defer srv.Close()

	s := NewMailgunSender("bad-key", "mg.example.com")
	s.baseURL = srv.URL

	out, err := s.Send(context.Background(), testMessage())
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "401")
}

func TestSESSenderWithoutCredentials(t *testing.T) {
	s := NewSESSender("", "", "")
	assert.Equal(t, "ses", s.Name())

	_, err := s.Send(context.Background(), testMessage())
	assert.Error(t, err, "uninitialized client is a configuration error")
}

func TestSMTPSenderDefaults(t *testing.T) {
	s := NewSMTPSender("mail.example.com", 0, "user", "pass")
	assert.Equal(t, "smtp", s.Name())
	assert.Equal(t, 587, s.port)
}
