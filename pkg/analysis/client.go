/*
Copyright 2025 The Shipmate Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package analysis is a thin client for the LLM analysis endpoint used
// by the pipeline stages. Responses are expected to carry a JSON
// verdict; when the model strays from the contract a deterministic
// fallback verdict is applied rather than failing the stage.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ahoma/shipmate/pkg/logging"
)

// ReviewVerdict is the outcome of a code review stage.
type ReviewVerdict string

const (
	VerdictApprove        ReviewVerdict = "approve"
	VerdictRequestChanges ReviewVerdict = "request_changes"
)

// Review is the structured result of the review stage.
type Review struct {
	Verdict ReviewVerdict `json:"verdict"`
	Summary string        `json:"summary"`
	Issues  []string      `json:"issues"`
}

// GeneratedTests is the structured result of the test-generation stage.
type GeneratedTests struct {
	Framework string `json:"framework"`
	Code      string `json:"code"`
}

// BuildRisk is the structured result of the build-risk stage. Score is
// a probability of build failure in [0,1].
type BuildRisk struct {
	Score   float64  `json:"score"`
	Factors []string `json:"factors"`
}

// Client talks to an OpenAI-compatible completion endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	log        *logging.Logger
}

// NewClient creates an analysis client. Timeout bounds each request.
func NewClient(endpoint, apiKey string, timeout time.Duration, log *logging.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.WithName("analysis"),
	}
}

// Configured reports whether an endpoint has been set. Stages skip
// analysis calls entirely when it has not.
func (c *Client) Configured() bool {
	return c != nil && c.endpoint != ""
}

type completionRequest struct {
	Model    string    `json:"model,omitempty"`
	Messages []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// complete sends one prompt and returns the raw model text.
func (c *Client) complete(ctx context.Context, system, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("analysis endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode analysis response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("analysis response contained no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// ReviewChange asks for a review verdict on a diff. A transport or
// endpoint error is returned as-is; a malformed verdict falls back to
// request_changes so a misbehaving model can never approve a change.
func (c *Client) ReviewChange(ctx context.Context, repository, ref, diff string) (Review, error) {
	prompt := fmt.Sprintf("Review the following change to %s at %s. Respond with JSON {\"verdict\":\"approve\"|\"request_changes\",\"summary\":string,\"issues\":[string]}.\n\n%s", repository, ref, diff)

	text, err := c.complete(ctx, "You are a strict code reviewer for deployment changes.", prompt)
	if err != nil {
		return Review{}, err
	}

	var review Review
	if err := json.Unmarshal(extractJSON(text), &review); err != nil || review.Verdict == "" {
		c.log.Info("Review verdict unparseable, applying fallback", "repository", repository)
		return Review{
			Verdict: VerdictRequestChanges,
			Summary: "analysis produced no parseable verdict; manual review required",
		}, nil
	}
	if review.Verdict != VerdictApprove && review.Verdict != VerdictRequestChanges {
		review.Verdict = VerdictRequestChanges
	}
	return review, nil
}

// GenerateTests asks for tests covering a diff. Falls back to an empty
// result with the framework noted when the model response is not JSON.
func (c *Client) GenerateTests(ctx context.Context, repository, diff string) (GeneratedTests, error) {
	prompt := fmt.Sprintf("Generate tests for the following change to %s. Respond with JSON {\"framework\":string,\"code\":string}.\n\n%s", repository, diff)

	text, err := c.complete(ctx, "You write focused automated tests.", prompt)
	if err != nil {
		return GeneratedTests{}, err
	}

	var tests GeneratedTests
	if err := json.Unmarshal(extractJSON(text), &tests); err != nil || tests.Code == "" {
		c.log.Info("Generated tests unparseable, applying fallback", "repository", repository)
		return GeneratedTests{Framework: "unknown"}, nil
	}
	return tests, nil
}

// PredictBuildRisk asks for a build failure probability. Malformed or
// out-of-range scores fall back to 0.5, the indifferent prior.
func (c *Client) PredictBuildRisk(ctx context.Context, repository, diff string) (BuildRisk, error) {
	prompt := fmt.Sprintf("Estimate the probability that building %s fails after this change. Respond with JSON {\"score\":number,\"factors\":[string]}.\n\n%s", repository, diff)

	text, err := c.complete(ctx, "You estimate build failure risk from diffs.", prompt)
	if err != nil {
		return BuildRisk{}, err
	}

	var risk BuildRisk
	if err := json.Unmarshal(extractJSON(text), &risk); err != nil || risk.Score < 0 || risk.Score > 1 {
		c.log.Info("Build risk unparseable, applying fallback", "repository", repository)
		return BuildRisk{Score: 0.5, Factors: []string{"analysis produced no parseable score"}}, nil
	}
	return risk, nil
}

// extractJSON pulls the first top-level JSON object out of model text,
// tolerating markdown fences and prose around it.
func extractJSON(text string) []byte {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return []byte(text)
	}
	return []byte(text[start : end+1])
}
