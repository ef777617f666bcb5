package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mailgate/gmailapi/internal/refresh"
	"github.com/mailgate/gmailapi/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) AccessToken(context.Context, user.User) (string, error) {
	return s.token, s.err
}

type fakeGmail struct {
	srv            *httptest.Server
	lastMaxResults atomic.Value
	lastQuery      atomic.Value
	fetches        atomic.Int32
}

func newFakeGmail(t *testing.T, messageIDs ...string) *fakeGmail {
	t.Helper()
	f := &fakeGmail{}
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	notFound := map[string]any{"error": map[string]any{"code": 404, "message": "Requested entity was not found."}}

	mux.HandleFunc("/gmail/v1/users/me/labels", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"labels": []map[string]any{
			{"id": "INBOX", "name": "INBOX", "type": "system"},
			{"id": "Label_1", "name": "Receipts", "type": "user"},
		}})
	})
	mux.HandleFunc("/gmail/v1/users/me/labels/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/labels/")
		if id != "INBOX" {
			writeJSON(w, http.StatusNotFound, notFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "INBOX", "name": "INBOX", "messagesTotal": 42})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		f.lastMaxResults.Store(r.URL.Query().Get("maxResults"))
		f.lastQuery.Store(r.URL.Query().Get("q"))
		refs := make([]map[string]any, 0, len(messageIDs))
		for _, id := range messageIDs {
			refs = append(refs, map[string]any{"id": id, "threadId": "t-" + id})
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": refs, "resultSizeEstimate": len(refs)})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/", func(w http.ResponseWriter, r *http.Request) {
		f.fetches.Add(1)
		id := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/messages/")
		if id == "missing" {
			writeJSON(w, http.StatusNotFound, notFound)
			return
		}
		if r.URL.Query().Get("format") != "full" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"code": 400, "message": "format"}})
			return
		}
		// Reverse the completion order to check that results keep listing order.
		if id == "m1" {
			time.Sleep(20 * time.Millisecond)
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "snippet": "snippet " + id})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeGmail) service(tokens accessTokenSource) *Service {
	return NewService(tokens, nil,
		option.WithEndpoint(f.srv.URL+"/"),
		option.WithHTTPClient(f.srv.Client()),
	)
}

var googleUser = user.User{ID: "u1", Account: user.GoogleAccount{Subject: "sub"}}

func TestListLabels(t *testing.T) {
	svc := newFakeGmail(t).service(staticTokens{token: "at"})

	labels, err := svc.ListLabels(context.Background(), googleUser)
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, "Receipts", labels[1].Name)
}

func TestGetLabelNotFoundIsAPIError(t *testing.T) {
	svc := newFakeGmail(t).service(staticTokens{token: "at"})

	label, err := svc.GetLabel(context.Background(), googleUser, "INBOX")
	require.NoError(t, err)
	assert.EqualValues(t, 42, label.MessagesTotal)

	_, err = svc.GetLabel(context.Background(), googleUser, "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGmailAPI))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "labels.get", apiErr.Op)
	assert.Contains(t, apiErr.Error(), "Requested entity was not found")
}

func TestListMessagesFetchesFullInListingOrder(t *testing.T) {
	fake := newFakeGmail(t, "m1", "m2", "m3", "m4", "m5", "m6", "m7")
	svc := fake.service(staticTokens{token: "at"})

	messages, err := svc.ListMessages(context.Background(), googleUser, "is:unread", 500)
	require.NoError(t, err)
	require.Len(t, messages, 7)
	for i, msg := range messages {
		assert.Equal(t, "m"+string(rune('1'+i)), msg.Id)
	}
	assert.Equal(t, "100", fake.lastMaxResults.Load())
	assert.Equal(t, "is:unread", fake.lastQuery.Load())
	assert.EqualValues(t, 7, fake.fetches.Load())
}

func TestListMessagesFailsWhenAnyFetchFails(t *testing.T) {
	svc := newFakeGmail(t, "m2", "missing").service(staticTokens{token: "at"})

	_, err := svc.ListMessages(context.Background(), googleUser, "", 0)
	assert.True(t, errors.Is(err, ErrGmailAPI), err)
}

func TestTokenErrorsPropagateUnchanged(t *testing.T) {
	cause := errors.Join(refresh.ErrTokenRefreshFailed, errors.New("invalid_grant"))
	svc := newFakeGmail(t).service(staticTokens{err: cause})

	_, err := svc.ListLabels(context.Background(), googleUser)
	assert.True(t, errors.Is(err, refresh.ErrTokenRefreshFailed))
	assert.False(t, errors.Is(err, ErrGmailAPI))
}

func TestClampMaxResults(t *testing.T) {
	assert.EqualValues(t, DefaultMaxResults, ClampMaxResults(0))
	assert.EqualValues(t, DefaultMaxResults, ClampMaxResults(-3))
	assert.EqualValues(t, 1, ClampMaxResults(1))
	assert.EqualValues(t, 55, ClampMaxResults(55))
	assert.EqualValues(t, MaxResultsLimit, ClampMaxResults(101))
}

func TestListLabelsEmptyMailboxIsEmptySlice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	svc := NewService(staticTokens{token: "at"}, nil,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)

	labels, err := svc.ListLabels(context.Background(), googleUser)
	require.NoError(t, err)
	require.NotNil(t, labels)
	assert.Empty(t, labels)
}

func TestClientConstructionFailureIsAPIError(t *testing.T) {
	// A second credential option next to the access token is rejected by the client.
	svc := NewService(staticTokens{token: "at"}, nil, option.WithCredentialsJSON([]byte(`{}`)))

	_, err := svc.ListLabels(context.Background(), googleUser)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGmailAPI), err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "client", apiErr.Op)
}
