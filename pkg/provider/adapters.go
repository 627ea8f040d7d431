// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// providerARequest and providerAResponse model a Claude-style messages
// API: content blocks in the response, system prompt carrying the
// schema instruction, usage reported as input/output tokens.
type providerARequest struct {
	Model     string               `json:"model"`
	MaxTokens int                  `json:"max_tokens"`
	System    string               `json:"system"`
	Messages  []providerAMessage   `json:"messages"`
}

type providerAMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type providerAResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewProviderA builds the adapter for the first supported provider.
func NewProviderA(cfg HTTPConfig) *HTTPProvider {
	cfg.ID = ProviderA
	return NewHTTPProvider(cfg,
		func(prompt string) ([]byte, error) {
			return json.Marshal(providerARequest{
				Model:     cfg.Model,
				MaxTokens: 256,
				System:    "Return only a JSON object matching this schema: " + ClassificationSchemaJSON(),
				Messages:  []providerAMessage{{Role: "user", Content: prompt}},
			})
		},
		func(body []byte) (string, int, int, error) {
			var resp providerAResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", 0, 0, err
			}
			if resp.Error != nil {
				return "", 0, 0, fmt.Errorf("provider-a error: %s", resp.Error.Message)
			}
			for _, block := range resp.Content {
				if block.Type == "text" && block.Text != "" {
					return block.Text, resp.Usage.InputTokens, resp.Usage.OutputTokens, nil
				}
			}
			return "", 0, 0, fmt.Errorf("provider-a response carried no text content")
		},
		func(req *http.Request, apiKey string) {
			req.Header.Set("X-Api-Key", apiKey)
			req.Header.Set("Anthropic-Version", "2023-06-01")
		},
	)
}

// providerBRequest and providerBResponse model an OpenAI-style
// chat-completions API: choices with a message, usage reported as
// prompt/completion tokens, response_format carrying the schema.
type providerBRequest struct {
	Model          string                 `json:"model"`
	Messages       []providerBMessage     `json:"messages"`
	ResponseFormat map[string]any         `json:"response_format"`
}

type providerBMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type providerBResponse struct {
	Choices []struct {
		Message providerBMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewProviderB builds the adapter for the second supported provider.
func NewProviderB(cfg HTTPConfig) *HTTPProvider {
	cfg.ID = ProviderB
	return NewHTTPProvider(cfg,
		func(prompt string) ([]byte, error) {
			var schema any
			if err := json.Unmarshal([]byte(ClassificationSchemaJSON()), &schema); err != nil {
				return nil, err
			}
			return json.Marshal(providerBRequest{
				Model: cfg.Model,
				Messages: []providerBMessage{
					{Role: "system", Content: "Return only JSON matching the given schema."},
					{Role: "user", Content: prompt},
				},
				ResponseFormat: map[string]any{
					"type": "json_schema",
					"json_schema": map[string]any{
						"name":   "DirectorClassification",
						"schema": schema,
					},
				},
			})
		},
		func(body []byte) (string, int, int, error) {
			var resp providerBResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return "", 0, 0, err
			}
			if resp.Error != nil {
				return "", 0, 0, fmt.Errorf("provider-b error: %s", resp.Error.Message)
			}
			if len(resp.Choices) == 0 {
				return "", 0, 0, fmt.Errorf("provider-b response carried no choices")
			}
			return resp.Choices[0].Message.Content, resp.Usage.PromptTokens, resp.Usage.CompletionTokens, nil
		},
		func(req *http.Request, apiKey string) {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		},
	)
}
