// Package enquiry submits concierge enquiries for the signed-in member
// through the authenticated request gateway.
package enquiry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/alexlup06-authgate/memberauth-go/memberauth"
)

// ErrUnknownKind is returned by Submit for a kind with no endpoint.
var ErrUnknownKind = errors.New("enquiry: unknown kind")

// Kind names an enquiry form.
type Kind string

// endpoints maps every kind to its path segment under /enquiries/.
var endpoints = map[Kind]string{
	"hotel":             "hotel",
	"airline":           "airline",
	"transfers":         "transfers",
	"activities":        "activities",
	"excursions":        "excursions",
	"yachts":            "yachts",
	"golf":              "golf",
	"ski":               "ski",
	"wellness":          "wellness",
	"restaurants":       "restaurants",
	"specialEvents":     "special-events",
	"artsMuseum":        "arts-museum",
	"giftDelivery":      "gift-delivery",
	"shows":             "shows",
	"destinationEvents": "destination-events",
	"themeParks":        "theme-parks",
	"cruiseRestaurants": "cruise-restaurants",
	"cruiseCasinos":     "cruise-casinos",
	"cruiseShows":       "cruise-shows",
	"cruiseExcursions":  "cruise-excursions",
	"cruiseSightseeing": "cruise-sightseeing",
	"executiveAirlines": "executive-airlines",
	"villas":            "villas",
	"rentalHub":         "rental-hub",
	"meetingRooms":      "meeting-rooms",
	"CarRental":         "car-rental",
	"spiritsWine":       "shopping-spirits-wine",
	"accessories":       "shopping-accessories",
	"fashion":           "shopping-fashion",
	"uniqueItems":       "shopping-unique-items",
}

// Path returns the endpoint segment for k.
func Path(k Kind) (string, bool) {
	p, ok := endpoints[k]
	return p, ok
}

// Kinds lists every known kind in sorted order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(endpoints))
	for k := range endpoints {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Receipt is the service's acknowledgement of an enquiry. Fields the
// service adds beyond these are kept in Raw.
type Receipt struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Status string `json:"status"`

	Raw json.RawMessage `json:"-"`
}

// Doer sends a request on behalf of the signed-in member. *memberauth.Gateway
// satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client submits enquiries.
type Client struct {
	doer    Doer
	baseURL string
}

// NewClient returns a Client posting to baseURL through doer.
func NewClient(doer Doer, baseURL string) *Client {
	return &Client{
		doer:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Submit posts payload as JSON to the endpoint for kind.
//
// A non-2xx answer is returned as a *memberauth.StatusError whose Message is
// the service detail, or "Failed to submit enquiry (<status>)" when the body
// carries none.
func (c *Client) Submit(ctx context.Context, kind Kind, payload any) (*Receipt, error) {
	path, ok := endpoints[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("enquiry: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/enquiries/"+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, fields := memberauth.ParseDetail(resp.Body, fmt.Sprintf("Failed to submit enquiry (%d)", resp.StatusCode))
		return nil, &memberauth.StatusError{Status: resp.StatusCode, Message: msg, FieldErrors: fields}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	r := &Receipt{Raw: raw}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, r); err != nil {
			return nil, fmt.Errorf("enquiry: decode receipt: %w", err)
		}
	}
	return r, nil
}
