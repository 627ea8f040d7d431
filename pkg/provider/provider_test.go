package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/originate-data/dirclass/internal/classerr"
	"github.com/originate-data/dirclass/pkg/model"
)

func TestProviderAClassifiesSuccessfully(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		json.NewEncoder(w).Encode(providerAResponse{
			Content: []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}{{Type: "text", Text: `{"category":"african","confidence":0.91}`}},
		})
	}))
	defer srv.Close()

	p := NewProviderA(HTTPConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model", CostPerKTokens: 0.01})
	result, err := p.Classify(context.Background(), "Thabo Mthembu", Context{EntityName: "Acme Pty Ltd"})

	require.NoError(t, err)
	assert.Equal(t, model.Category("african"), result.Category)
	assert.InDelta(t, 0.91, result.Confidence, 0.001)
	assert.Equal(t, ProviderA, result.ProviderID)
}

func TestProviderBClassifiesSuccessfully(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		resp := providerBResponse{}
		resp.Choices = []struct {
			Message providerBMessage `json:"message"`
		}{{Message: providerBMessage{Role: "assistant", Content: `{"category":"indian","confidence":0.87}`}}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewProviderB(HTTPConfig{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model", CostPerKTokens: 0.01})
	result, err := p.Classify(context.Background(), "Pillay", Context{})

	require.NoError(t, err)
	assert.Equal(t, model.Category("indian"), result.Category)
	assert.Equal(t, ProviderB, result.ProviderID)
}

func TestClassifyMapsRateLimitStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewProviderA(HTTPConfig{BaseURL: srv.URL, APIKey: "k", Model: "m", MaxRetries: 0})
	_, err := p.Classify(context.Background(), "Anyone", Context{})

	require.Error(t, err)
	assert.True(t, classerr.Is(err, classerr.KindRateLimited))
}

func TestClassifyMapsQuotaExhaustedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := NewProviderA(HTTPConfig{BaseURL: srv.URL, APIKey: "k", Model: "m", MaxRetries: 0})
	_, err := p.Classify(context.Background(), "Anyone", Context{})

	require.Error(t, err)
	assert.True(t, classerr.Is(err, classerr.KindQuotaExhausted))
}

func TestClassifyRejectsOutOfSchemaCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(providerAResponse{
			Content: []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}{{Type: "text", Text: `{"category":"martian","confidence":0.9}`}},
		})
	}))
	defer srv.Close()

	p := NewProviderA(HTTPConfig{BaseURL: srv.URL, APIKey: "k", Model: "m", MaxRetries: 0})
	_, err := p.Classify(context.Background(), "Anyone", Context{})

	require.Error(t, err)
	assert.True(t, classerr.Is(err, classerr.KindMalformedResponse))
}
