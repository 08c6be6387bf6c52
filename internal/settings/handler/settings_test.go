package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "github.com/cscportal/portal-backend/internal/catalog/domain"
	"github.com/cscportal/portal-backend/internal/settings/service"
	"github.com/cscportal/portal-backend/pkg/logger"
	"github.com/cscportal/portal-backend/pkg/testutil"
)

type settingsMap map[string]string

func (m settingsMap) All(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

func (m settingsMap) Count(ctx context.Context) (int, error) { return len(m), nil }

func (m settingsMap) Upsert(ctx context.Context, values map[string]string) error {
	for k, v := range values {
		m[k] = v
	}
	return nil
}

type staticServices []*catalog.Service

func (s staticServices) List(ctx context.Context) ([]*catalog.Service, error) { return s, nil }

func newRouter(store settingsMap) http.Handler {
	services := staticServices{{ID: "svc-1", Title: "PAN Card Service"}}
	h := NewSettingsHandler(service.NewSettingsService(store, logger.NewNop()), services, logger.NewNop())

	r := chi.NewRouter()
	r.Get("/site", h.Site)
	r.Get("/admin/settings", h.Get)
	r.Put("/admin/settings", h.Update)
	return r
}

func TestSite(t *testing.T) {
	router := newRouter(settingsMap{"shop_name": "CSC Asara"})

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/site", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var body struct {
		Data SiteResponse `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &body)
	assert.Equal(t, "CSC Asara", body.Data.Settings["shop_name"])
	assert.Equal(t, "Common Service Centre", body.Data.Settings["shop_tagline"])
	require.Len(t, body.Data.Services, 1)
	assert.Equal(t, "PAN Card Service", body.Data.Services[0].Title)
}

func TestUpdate(t *testing.T) {
	store := settingsMap{}
	router := newRouter(store)

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPut, "/admin/settings",
		map[string]string{"shop_timings": "Mon - Fri: 10AM - 6PM"}))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, "Mon - Fri: 10AM - 6PM")
	assert.Equal(t, "Mon - Fri: 10AM - 6PM", store["shop_timings"])

	rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPut, "/admin/settings",
		map[string]string{"theme": "dark"}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	assert.NotContains(t, store, "theme")
}

func TestUpdate_RejectsNonStringValues(t *testing.T) {
	router := newRouter(settingsMap{})

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPut, "/admin/settings",
		map[string]interface{}{"shop_name": 42}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}
