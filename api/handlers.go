package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/draftline/draftline/keystore"
	"github.com/draftline/draftline/provider"
)

const maxSmallBodySize = 16 << 10

const msgNoKeyForSession = "No API key connected for this session."

// Root handles GET /.
func (a *API) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{Service: "draftline", Docs: "/api/v1/docs"})
}

// Health handles GET /health.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// providerFromPath parses the {provider} path parameter.
func providerFromPath(r *http.Request) (provider.Tag, *apiError) {
	tag, err := provider.ParseTag(chi.URLParam(r, "provider"))
	if err != nil {
		return "", invalidInput("Unknown provider")
	}
	return tag, nil
}

// requireSession extracts the session identifier the middleware has
// already validated and touched. Handlers that reach here with no header
// never saw the middleware create a session, so they refuse the request.
func requireSession(r *http.Request) (string, *apiError) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		return "", sessionRequired()
	}
	return id, nil
}

// ProviderStatus handles GET /api/v1/providers/{provider}/status.
func (a *API) ProviderStatus(w http.ResponseWriter, r *http.Request) {
	tag, apiErr := providerFromPath(r)
	if apiErr != nil {
		a.writeAPIError(w, r, apiErr)
		return
	}
	id, apiErr := requireSession(r)
	if apiErr != nil {
		a.writeAPIError(w, r, apiErr)
		return
	}

	masked, err := a.stores[tag].Masked(id)
	if errors.Is(err, keystore.ErrNotFound) {
		writeJSON(w, http.StatusOK, ConnectionResponse{Connected: false, MaskedKey: nil})
		return
	}
	writeJSON(w, http.StatusOK, ConnectionResponse{Connected: true, MaskedKey: &masked})
}

// ConnectProvider handles POST /api/v1/providers/{provider}/connect. The
// plaintext key is validated against the provider before anything is
// stored; a rejected key leaves the store untouched.
func (a *API) ConnectProvider(w http.ResponseWriter, r *http.Request) {
	tag, apiErr := providerFromPath(r)
	if apiErr != nil {
		a.writeAPIError(w, r, apiErr)
		return
	}
	id, apiErr := requireSession(r)
	if apiErr != nil {
		a.writeAPIError(w, r, apiErr)
		return
	}

	req, ok := decodeJSON[ConnectRequest](a, w, r, maxSmallBodySize)
	if !ok {
		return
	}
	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		a.writeAPIError(w, r, invalidInput("API key is required"))
		return
	}

	if err := a.clients[tag].Validate(r.Context(), key); err != nil {
		a.audit.log(AuditKeyConnected, id, auditFailure, map[string]any{
			"provider": string(tag),
		})
		a.writeAPIError(w, r, classifyProviderError(err, tag, true))
		return
	}

	if err := a.stores[tag].Store(id, key); err != nil {
		if errors.Is(err, keystore.ErrEmptyKey) {
			a.writeAPIError(w, r, invalidInput("API key is required"))
			return
		}
		a.writeAPIError(w, r, internalError(err))
		return
	}

	// The session may have expired or been reaped while the provider was
	// validating the key. A key stored against a dead session could
	// outlive every sweep, so it is removed here instead.
	if !a.registry.Exists(id) || a.registry.IsExpired(id) {
		a.stores[tag].Delete(id)
		a.writeAPIError(w, r, sessionExpired())
		return
	}

	a.audit.log(AuditKeyConnected, id, auditSuccess, map[string]any{
		"provider": string(tag),
	})

	masked, err := a.stores[tag].Masked(id)
	if err != nil {
		a.writeAPIError(w, r, internalError(err))
		return
	}
	writeJSON(w, http.StatusOK, ConnectionResponse{Connected: true, MaskedKey: &masked})
}

// DisconnectProvider handles POST /api/v1/providers/{provider}/disconnect.
func (a *API) DisconnectProvider(w http.ResponseWriter, r *http.Request) {
	tag, apiErr := providerFromPath(r)
	if apiErr != nil {
		a.writeAPIError(w, r, apiErr)
		return
	}
	id, apiErr := requireSession(r)
	if apiErr != nil {
		a.writeAPIError(w, r, apiErr)
		return
	}

	store := a.stores[tag]
	if !store.Exists(id) {
		a.writeAPIError(w, r, invalidInput(msgNoKeyForSession))
		return
	}

	store.Delete(id)
	a.audit.log(AuditKeyDisconnected, id, auditSuccess, map[string]any{
		"provider": string(tag),
	})
	writeJSON(w, http.StatusOK, ConnectionResponse{Connected: false, MaskedKey: nil})
}

// Generate handles POST /api/v1/generate. The decrypted key exists only
// for the duration of the provider call and is never cached.
func (a *API) Generate(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		a.writeAPIError(w, r, notConnected())
		return
	}

	req, ok := decodeJSON[GenerateRequest](a, w, r, maxSmallBodySize)
	if !ok {
		return
	}

	tag, err := provider.ParseTag(req.Provider)
	if err != nil {
		a.writeAPIError(w, r, invalidInput("Unknown provider"))
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		a.writeAPIError(w, r, invalidInput("Topic is required"))
		return
	}

	key, err := a.stores[tag].Retrieve(id)
	if err != nil {
		if errors.Is(err, keystore.ErrNotFound) {
			a.writeAPIError(w, r, notConnected())
			return
		}
		a.writeAPIError(w, r, internalError(err))
		return
	}

	res, err := a.clients[tag].Generate(r.Context(), key, provider.GenerateRequest{
		Topic:    req.Topic,
		Tone:     req.Tone,
		Audience: req.Audience,
		Model:    req.Model,
	})
	if err != nil {
		a.audit.log(AuditGenerationRequested, id, auditFailure, map[string]any{
			"provider": string(tag),
		})
		a.writeAPIError(w, r, classifyProviderError(err, tag, false))
		return
	}

	a.audit.log(AuditGenerationRequested, id, auditSuccess, map[string]any{
		"provider": string(tag),
		"model":    res.Model,
	})
	writeJSON(w, http.StatusOK, GenerateResponse{
		Provider: string(tag),
		Model:    res.Model,
		Content:  res.Content,
	})
}
