package api

// ErrorResponse is the uniform failure body. CorrelationID is present only
// on 500 responses.
type ErrorResponse struct {
	Detail        string `json:"detail"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// ConnectRequest is the JSON body for POST /providers/{provider}/connect.
type ConnectRequest struct {
	APIKey string `json:"api_key"`
}

// ConnectionResponse is returned from status, connect and disconnect.
// MaskedKey is null when no key is stored.
type ConnectionResponse struct {
	Connected bool    `json:"connected"`
	MaskedKey *string `json:"masked_key"`
}

// GenerateRequest is the JSON body for POST /generate.
type GenerateRequest struct {
	Provider string `json:"provider"`
	Topic    string `json:"topic"`
	Tone     string `json:"tone,omitempty"`
	Audience string `json:"audience,omitempty"`
	Model    string `json:"model,omitempty"`
}

// GenerateResponse is returned from POST /generate.
type GenerateResponse struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Content  string `json:"content"`
}

// HealthResponse is returned from GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// RootResponse is returned from GET /.
type RootResponse struct {
	Service string `json:"service"`
	Docs    string `json:"docs"`
}
