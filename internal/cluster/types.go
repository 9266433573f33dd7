package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dreamware/zonectl/internal/topology"
)

// AddShardRequest is the body of POST /admin/shards.
type AddShardRequest struct {
	Shard topology.Shard `json:"shard"`
}

// AddShardToZoneRequest is the body of POST /admin/shards/{id}/zones.
type AddShardToZoneRequest struct {
	Zone string `json:"zone"`
}

// EnableShardingRequest is the body of POST /admin/databases.
type EnableShardingRequest struct {
	Database string `json:"database"`
}

// ShardCollectionRequest is the body of POST /admin/collections.
type ShardCollectionRequest struct {
	Namespace topology.Namespace `json:"namespace"`
	Key       topology.ShardKey  `json:"key"`
}

// UpdateZoneKeyRangeRequest is the body of POST /admin/ranges.
type UpdateZoneKeyRangeRequest struct {
	Namespace topology.Namespace `json:"namespace"`
	Range     topology.ZoneRange `json:"range"`
}

// RouteRequest is the body of POST /route.
type RouteRequest struct {
	Namespace topology.Namespace `json:"namespace"`
	Document  map[string]any     `json:"document"`
}

// ErrorResponse is the body of every non-2xx coordinator response. Code is
// one of the topology.Code* constants.
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

// PostJSON sends body as JSON and decodes the response into out when out is
// non-nil. Transport failures wrap topology.ErrConnection; error responses
// are decoded back into the topology error taxonomy.
func PostJSON(ctx context.Context, url string, body any, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(req, out)
}

// GetJSON fetches url and decodes the JSON response into out.
func GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return do(req, out)
}

func do(req *http.Request, out any) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", topology.ErrConnection, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return decodeError(req.URL.String(), resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(url string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil {
		if sentinel := topology.Sentinel(body.Code); sentinel != nil {
			// The coordinator's message already starts with the sentinel text.
			msg := strings.TrimPrefix(body.Error, sentinel.Error()+": ")
			return fmt.Errorf("%w: %s", sentinel, msg)
		}
		if body.Error != "" {
			return fmt.Errorf("http %s: %d: %s", url, resp.StatusCode, body.Error)
		}
	}
	return fmt.Errorf("http %s: %d", url, resp.StatusCode)
}
