package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
)

// HTTPAnnotator calls an external content-analysis service over HTTP. The
// hook's timeout bounds the request via the context.
type HTTPAnnotator struct {
	url    string
	client *http.Client
}

func NewHTTPAnnotator(url string, client *http.Client) *HTTPAnnotator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPAnnotator{url: url, client: client}
}

type annotateRequest struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	TenantID string          `json:"tenant_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type annotateResponse struct {
	Annotations map[string]string `json:"annotations"`
}

func (a *HTTPAnnotator) Annotate(ctx context.Context, msg *domain.Message) (map[string]string, error) {
	body, err := json.Marshal(annotateRequest{
		ID:       msg.ID,
		Type:     msg.Type,
		TenantID: msg.TenantID,
		Payload:  msg.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", domain.ErrClassifier, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrClassifier, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrClassifier, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: annotator returned %d", domain.ErrClassifier, resp.StatusCode)
	}

	var out annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrClassifier, err)
	}
	return out.Annotations, nil
}
