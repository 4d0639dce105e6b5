package compliance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/model"
	"github.com/iWorld-y/compliance_radar/app/compliance_radar/pkg/source"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	log, _ := test.NewNullLogger()
	return NewClient(Options{
		InternalBaseURL: srv.URL + "/compliance_alerts",
		PublicBaseURL:   srv.URL + "/compliance_alerts/",
		APIKey:          "token-123",
		Status:          "active",
		HTTPClient:      srv.Client(),
		Logger:          log,
	})
}

func TestClient_FetchIdentifiers(t *testing.T) {
	var gotQuery, gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":[{"id":"A-1"},{"id":2},{"id":"A-3"}]}`))
	}))

	since := time.Date(2024, 2, 1, 0, 0, 0, 0, time.Local)
	ids, err := c.FetchIdentifiers(context.Background(), 2, &since)
	require.NoError(t, err)

	assert.Equal(t, []string{"A-1", "2"}, ids)
	assert.Equal(t, "Bearer token-123", gotAuth)
	assert.Contains(t, gotQuery, "start_date=2024-02-01")
	assert.Contains(t, gotQuery, "status=active")
	assert.Contains(t, gotQuery, "limit=2")

	_, err = c.FetchIdentifiers(context.Background(), 2, nil)
	require.NoError(t, err)
	assert.NotContains(t, gotQuery, "start_date")
}

func TestClient_FetchIdentifiers_Unauthorized(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))

	_, err := c.FetchIdentifiers(context.Background(), 10, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "401")
}

func TestClient_FetchDetail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/compliance_alerts/ALERT-00001":
			assert.Empty(t, r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{
				"alert_id": "ALERT-00001",
				"type_of_alert": "Fatura Duplicada",
				"status": "Resolvido",
				"assigned_to": "usuario3@mercadolivre.com",
				"creation_date": "2024-01-10",
				"resolution_date": "2024-01-20",
				"impact_level": "Alto",
				"description": "duplicada; \"urgente\"",
				"source": "Fornecedor B",
				"priority": 4
			}`))
		case "/compliance_alerts/ALERT-00002":
			_, _ = w.Write([]byte(`{"alert_id":"ALERT-00002","status":"Aberto","creation_date":"2024-01-11","resolution_date":null,"priority":1}`))
		default:
			http.NotFound(w, r)
		}
	}))

	rec, err := c.FetchDetail(context.Background(), "ALERT-00001")
	require.NoError(t, err)
	assert.Equal(t, "Fatura Duplicada", rec.TypeOfAlert)
	assert.Equal(t, model.StatusResolved, rec.Status)
	assert.Equal(t, 4, rec.Priority)
	assert.Equal(t, "2024-01-10", model.FormatDate(rec.CreationDate))
	require.NotNil(t, rec.ResolutionDate)
	assert.Equal(t, "2024-01-20", model.FormatDate(*rec.ResolutionDate))

	open, err := c.FetchDetail(context.Background(), "ALERT-00002")
	require.NoError(t, err)
	assert.Nil(t, open.ResolutionDate)

	_, err = c.FetchDetail(context.Background(), "ALERT-404")
	assert.True(t, errors.Is(err, source.ErrDetailUnavailable))
	assert.Contains(t, err.Error(), "ALERT-404")
}

func TestClient_FetchDetail_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"bad creation date", `{"alert_id":"X","creation_date":"10/01/2024"}`},
		{"bad resolution date", `{"alert_id":"X","creation_date":"2024-01-10","resolution_date":"soon"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			_, err := c.FetchDetail(context.Background(), "X")
			assert.True(t, errors.Is(err, source.ErrDetailUnavailable))
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Options{
		InternalBaseURL: srv.URL,
		PublicBaseURL:   srv.URL,
		APIKey:          "k",
		HTTPClient:      &http.Client{Timeout: 50 * time.Millisecond},
		Logger:          logrus.New(),
	})
	_, err := c.FetchDetail(context.Background(), "slow")
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrDetailUnavailable))
	assert.True(t, strings.Contains(err.Error(), "request failed"))
}
