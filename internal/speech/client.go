package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// ErrMalformedResponse means a provider payload is missing a field the
// protocol requires (job URI, status, transcription artifact, ...).
var ErrMalformedResponse = errors.New("malformed provider response")

const subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

// Client talks to the Azure Speech batch transcription REST API. It is
// stateless: headers are built fresh per request so concurrent calls never
// interfere with each other.
type Client struct {
	baseURL    string
	key        string
	httpClient *http.Client
}

// NewClient builds a client for the given region and API version.
func NewClient(region, apiVersion, subscriptionKey string) *Client {
	base := fmt.Sprintf("https://%s.api.cognitive.microsoft.com/speechtotext/%s", region, apiVersion)
	return NewClientWithBaseURL(base, subscriptionKey)
}

// NewClientWithBaseURL is the test seam: it points the client at an
// arbitrary endpoint.
func NewClientWithBaseURL(baseURL, subscriptionKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     subscriptionKey,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

type submitProperties struct {
	WordLevelTimestampsEnabled bool                   `json:"wordLevelTimestampsEnabled"`
	LanguageIdentification     languageIdentification `json:"languageIdentification"`
}

type languageIdentification struct {
	CandidateLocales []string `json:"candidateLocales"`
}

type submitRequest struct {
	DisplayName string           `json:"displayName"`
	Locale      string           `json:"locale"`
	ContentURLs []string         `json:"contentUrls"`
	Properties  submitProperties `json:"properties"`
}

// Submit creates a transcription job for audioURL and returns the job's
// self URI.
func (c *Client) Submit(ctx context.Context, audioURL, displayName string) (string, error) {
	body := submitRequest{
		DisplayName: displayName,
		Locale:      "en-US",
		ContentURLs: []string{audioURL},
		Properties: submitProperties{
			WordLevelTimestampsEnabled: false,
			LanguageIdentification: languageIdentification{
				CandidateLocales: []string{"zh-CN", "en-US"},
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	requestURL := c.baseURL + "/transcriptions"
	log.Printf("[speech] submitting %s to %s", displayName, requestURL)

	var resp struct {
		Self string `json:"self"`
	}
	if err := c.doJSON(ctx, http.MethodPost, requestURL, payload, &resp); err != nil {
		return "", err
	}
	if resp.Self == "" {
		return "", fmt.Errorf("%w: missing self URI", ErrMalformedResponse)
	}
	return resp.Self, nil
}

// Status polls a job URI and returns its status mapped into the closed
// enum.
func (c *Client) Status(ctx context.Context, jobURI string) (JobStatus, error) {
	var resp struct {
		Status *string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, jobURI, nil, &resp); err != nil {
		return JobUnknown, err
	}
	if resp.Status == nil {
		return JobUnknown, fmt.Errorf("%w: missing status field", ErrMalformedResponse)
	}
	return ParseJobStatus(*resp.Status), nil
}

// ResultFile is one artifact in a finished job's file manifest.
type ResultFile struct {
	Kind  string `json:"kind"`
	Links struct {
		ContentURL string `json:"contentUrl"`
	} `json:"links"`
}

// ResultFiles fetches the file manifest of a finished job.
func (c *Client) ResultFiles(ctx context.Context, jobURI string) ([]ResultFile, error) {
	var resp struct {
		Values []ResultFile `json:"values"`
	}
	if err := c.doJSON(ctx, http.MethodGet, jobURI+"/files", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// Transcript downloads a transcription artifact and returns the display
// text of the first combined recognized phrase.
func (c *Client) Transcript(ctx context.Context, contentURL string) (string, error) {
	var resp struct {
		CombinedRecognizedPhrases []struct {
			Display string `json:"display"`
		} `json:"combinedRecognizedPhrases"`
	}
	if err := c.doJSON(ctx, http.MethodGet, contentURL, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.CombinedRecognizedPhrases) == 0 {
		return "", fmt.Errorf("%w: no combinedRecognizedPhrases", ErrMalformedResponse)
	}
	return resp.CombinedRecognizedPhrases[0].Display, nil
}

func (c *Client) doJSON(ctx context.Context, method, url string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(subscriptionKeyHeader, c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read provider response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider error (status %d): %s", resp.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
