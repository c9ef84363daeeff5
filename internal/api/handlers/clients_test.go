package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprinklerops/internal/types"
)

func TestClientCRUD(t *testing.T) {
	env := newTestEnv(t)

	id := env.createClient("Greenway HOA")

	rec := env.do(http.MethodGet, "/v1/clients/"+itoa(id), nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)
	var client types.Client
	decodeData(t, rec, &client)
	assert.Equal(t, "Greenway HOA", client.Name)

	rec = env.do(http.MethodPut, "/v1/clients/"+itoa(id), map[string]any{
		"name":    "Greenway HOA (North)",
		"email":   "board@greenway.test",
		"phone":   "555-0101",
		"address": "14 Canal Rd",
		"notes":   "gate code 4411",
	}, env.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeData(t, rec, &client)
	assert.Equal(t, "Greenway HOA (North)", client.Name)
	assert.Equal(t, "gate code 4411", client.Notes)

	rec = env.do(http.MethodDelete, "/v1/clients/"+itoa(id), nil, env.token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/v1/clients/"+itoa(id), nil, env.token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundClient), errorCode(t, rec))
}

func TestClientListSearchAndPagination(t *testing.T) {
	env := newTestEnv(t)

	env.createClient("Alpha Apartments")
	env.createClient("Alpha Annex")
	env.createClient("Beta Business Park")

	rec := env.do(http.MethodGet, "/v1/clients?q=Alpha", nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)
	var clients []types.Client
	decodeData(t, rec, &clients)
	assert.Len(t, clients, 2)

	rec = env.do(http.MethodGet, "/v1/clients?limit=2", nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Data []types.Client `json:"data"`
		Page types.PageInfo `json:"page"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Data, 2)
	assert.True(t, page.Page.HasMore)
	assert.Equal(t, 2, page.Page.Limit)
}

func TestClientInvalidID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/v1/clients/banana", nil, env.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClientCrossTenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	id := env.createClient("Tenant A Client")

	otherToken := env.register("Rival Irrigation", "owner@rival.test")

	rec := env.do(http.MethodGet, "/v1/clients/"+itoa(id), nil, otherToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodGet, "/v1/clients", nil, otherToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var clients []types.Client
	decodeData(t, rec, &clients)
	assert.Empty(t, clients)
}

func TestSiteNestedCreateAndList(t *testing.T) {
	env := newTestEnv(t)
	clientID := env.createClient("Maple Street Rentals")

	siteID := env.createSite(clientID, "Unit 12")
	env.createSite(clientID, "Unit 14")

	rec := env.do(http.MethodGet, "/v1/clients/"+itoa(clientID)+"/sites", nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)
	var sites []types.Site
	decodeData(t, rec, &sites)
	assert.Len(t, sites, 2)

	rec = env.do(http.MethodPut, "/v1/sites/"+itoa(siteID), map[string]any{
		"label":      "Unit 12 (rear)",
		"address":    "12 Maple St",
		"zone_count": 6,
		"notes":      "backflow by the fence",
	}, env.token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var site types.Site
	decodeData(t, rec, &site)
	assert.Equal(t, "Unit 12 (rear)", site.Label)
	assert.Equal(t, 6, site.ZoneCount)
	assert.Equal(t, clientID, site.ClientID)
}

func TestSiteUnderForeignClient(t *testing.T) {
	env := newTestEnv(t)
	clientID := env.createClient("Local Client")

	otherToken := env.register("Other Co", "owner@otherco.test")

	rec := env.do(http.MethodPost, "/v1/clients/"+itoa(clientID)+"/sites", map[string]any{
		"label":      "Intruder Site",
		"address":    "1 Elsewhere",
		"zone_count": 2,
	}, otherToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
