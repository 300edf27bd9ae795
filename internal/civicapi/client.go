// Package civicapi imports US House representatives from the Google Civic
// Information API.
package civicapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the production Civic Information API endpoint.
const DefaultBaseURL = "https://www.googleapis.com/civicinfo/v2"

// RoleLowerBody selects members of the lower house of a legislature.
const RoleLowerBody = "legislatorLowerBody"

// KeyHeader carries the API key so it never appears in request URLs.
const KeyHeader = "X-Goog-Api-Key"

// Client calls the Civic Information API.
type Client struct {
	baseURL string
	key     string
	client  *http.Client
}

// NewClient creates a client for baseURL authenticated with key.
func NewClient(baseURL, key string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		client:  &http.Client{Timeout: timeout},
	}
}

// RepresentativeInfoByDivision fetches the lower-house representatives of
// the division identified by ocdID.
func (c *Client) RepresentativeInfoByDivision(ctx context.Context, ocdID string) (*Response, error) {
	q := url.Values{}
	q.Set("roles", RoleLowerBody)
	endpoint := c.baseURL + "/representatives/" + url.PathEscape(ocdID) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(KeyHeader, c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("civic API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode civic API response: %w", err)
	}
	return &out, nil
}

// StatusError is a non-200 answer from the API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("civic API returned status %d: %s", e.Code, e.Body)
}

// =============================================================================
// API TYPES
// =============================================================================

// Response is the representativeInfoByDivision payload.
type Response struct {
	Divisions map[string]DivisionInfo `json:"divisions"`
	Offices   []OfficeInfo            `json:"offices"`
	Officials []OfficialInfo          `json:"officials"`
}

type DivisionInfo struct {
	Name          string `json:"name"`
	OfficeIndices []int  `json:"officeIndices"`
}

type OfficeInfo struct {
	Name            string `json:"name"`
	DivisionID      string `json:"divisionId"`
	OfficialIndices []int  `json:"officialIndices"`
}

type OfficialInfo struct {
	Name     string        `json:"name"`
	Party    string        `json:"party"`
	Address  []AddressInfo `json:"address"`
	Phones   []string      `json:"phones"`
	URLs     []string      `json:"urls"`
	Emails   []string      `json:"emails"`
	Channels []ChannelInfo `json:"channels"`
}

type AddressInfo struct {
	LocationName string `json:"locationName"`
	Line1        string `json:"line1"`
	Line2        string `json:"line2"`
	Line3        string `json:"line3"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
}

type ChannelInfo struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Representative resolves the division's first office and that office's
// first official, the shape the API returns for a single congressional
// district.
func (r *Response) Representative(ocdID string) (DivisionInfo, OfficeInfo, OfficialInfo, error) {
	div, ok := r.Divisions[ocdID]
	if !ok {
		return DivisionInfo{}, OfficeInfo{}, OfficialInfo{}, fmt.Errorf("division %s missing from response", ocdID)
	}
	if len(div.OfficeIndices) == 0 || !inRange(div.OfficeIndices[0], len(r.Offices)) {
		return div, OfficeInfo{}, OfficialInfo{}, fmt.Errorf("division %s has no office", ocdID)
	}
	office := r.Offices[div.OfficeIndices[0]]
	if len(office.OfficialIndices) == 0 || !inRange(office.OfficialIndices[0], len(r.Officials)) {
		return div, office, OfficialInfo{}, fmt.Errorf("office %q has no official", office.Name)
	}
	return div, office, r.Officials[office.OfficialIndices[0]], nil
}

func inRange(idx, n int) bool {
	return idx >= 0 && idx < n
}
