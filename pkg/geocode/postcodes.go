package geocode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/heritage-watch/heritage-cli/internal/resilience"
)

type postcodeData struct {
	Postcode      string  `json:"postcode"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	AdminDistrict string  `json:"admin_district"`
}

type lookupResponse struct {
	Status int           `json:"status"`
	Result *postcodeData `json:"result"`
}

type bulkResponse struct {
	Status int `json:"status"`
	Result []struct {
		Query  string        `json:"query"`
		Result *postcodeData `json:"result"`
	} `json:"result"`
}

type reverseResponse struct {
	Status int             `json:"status"`
	Result []*postcodeData `json:"result"`
}

func resultFrom(d *postcodeData) Result {
	if d == nil {
		return Result{Matched: false}
	}
	return Result{
		Postcode:  d.Postcode,
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
		District:  d.AdminDistrict,
		Matched:   true,
	}
}

func (c *client) Lookup(ctx context.Context, postcode string) (*Result, error) {
	postcode = NormalizePostcode(postcode)
	if postcode == "" {
		return nil, eris.New("geocode: empty postcode")
	}

	path := "/postcodes/" + url.PathEscape(postcode)
	body, notFound, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	if notFound {
		zap.L().Debug("postcode not found", zap.String("postcode", postcode))
		return &Result{Matched: false}, nil
	}

	var resp lookupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "geocode: decode lookup response")
	}

	res := resultFrom(resp.Result)
	zap.L().Debug("postcode resolved",
		zap.String("postcode", postcode),
		zap.Float64("lat", res.Latitude),
		zap.Float64("lng", res.Longitude),
		zap.String("district", res.District))
	return &res, nil
}

func (c *client) BulkLookup(ctx context.Context, postcodes []string) ([]Result, error) {
	if len(postcodes) == 0 {
		return nil, nil
	}

	normalized := make([]string, len(postcodes))
	for i, p := range postcodes {
		normalized[i] = NormalizePostcode(p)
	}

	payload, err := json.Marshal(map[string][]string{"postcodes": normalized})
	if err != nil {
		return nil, eris.Wrap(err, "geocode: encode bulk request")
	}

	body, _, err := c.post(ctx, "/postcodes", payload)
	if err != nil {
		return nil, err
	}

	var resp bulkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "geocode: decode bulk response")
	}

	// Order results to match input; postcodes.io echoes the query.
	byQuery := make(map[string]Result, len(resp.Result))
	for _, entry := range resp.Result {
		byQuery[NormalizePostcode(entry.Query)] = resultFrom(entry.Result)
	}

	results := make([]Result, len(normalized))
	for i, p := range normalized {
		if r, ok := byQuery[p]; ok {
			results[i] = r
		} else {
			results[i] = Result{Matched: false}
		}
	}
	return results, nil
}

func (c *client) Reverse(ctx context.Context, lat, lng float64) (*Result, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lng))

	body, notFound, err := c.get(ctx, "/postcodes?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if notFound {
		return &Result{Matched: false}, nil
	}

	var resp reverseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "geocode: decode reverse response")
	}
	if len(resp.Result) == 0 {
		return &Result{Matched: false}, nil
	}

	res := resultFrom(resp.Result[0])
	return &res, nil
}

func (c *client) get(ctx context.Context, path string) ([]byte, bool, error) {
	return c.call(ctx, http.MethodGet, path, nil)
}

func (c *client) post(ctx context.Context, path string, payload []byte) ([]byte, bool, error) {
	return c.call(ctx, http.MethodPost, path, payload)
}

type callResult struct {
	body     []byte
	notFound bool
}

// call performs one API request with rate limiting, retry on transient HTTP
// failures, and a circuit breaker around the whole retried operation. A 404
// response is reported via notFound rather than error.
func (c *client) call(ctx context.Context, method, path string, payload []byte) ([]byte, bool, error) {
	out, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (callResult, error) {
		return c.callOnce(ctx, method, path, payload)
	})
	if err != nil {
		return nil, false, err
	}
	return out.body, out.notFound, nil
}

func (c *client) callOnce(ctx context.Context, method, path string, payload []byte) (callResult, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (callResult, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return callResult{}, eris.Wrap(err, "geocode: rate limiter")
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return callResult{}, eris.Wrap(err, "geocode: build request")
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return callResult{}, resilience.NewTransientError(eris.Wrap(err, "geocode: request failed"), 0)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return callResult{}, eris.Wrap(err, "geocode: read response body")
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return callResult{body: body}, nil
		case resp.StatusCode == http.StatusNotFound:
			return callResult{notFound: true}, nil
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			return callResult{}, resilience.NewTransientError(
				eris.Errorf("geocode: API returned status %d", resp.StatusCode), resp.StatusCode)
		default:
			return callResult{}, eris.Errorf("geocode: API returned status %d", resp.StatusCode)
		}
	})
}
