package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// REST talks to a hosted PostgREST endpoint (the Supabase REST API) over HTTPS.
// Every request carries the API key both as apikey and as a bearer token.
type REST struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewREST(baseURL, apiKey string, client *http.Client) *REST {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &REST{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (r *REST) List(ctx context.Context, table string, q Query, dst any) error {
	if err := checkQuery(table, q); err != nil {
		return wrap("list", table, err)
	}
	params := url.Values{}
	params.Set("select", "*")
	for _, f := range q.Filters {
		params.Add(f.Column, "eq."+formatValue(f.Value))
	}
	if len(q.Sort) > 0 {
		parts := make([]string, len(q.Sort))
		for i, s := range q.Sort {
			dir := "asc"
			if s.Desc {
				dir = "desc"
			}
			parts[i] = s.Column + "." + dir
		}
		params.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	raw, err := r.do(ctx, http.MethodGet, table, params, nil)
	if err != nil {
		return wrap("list", table, err)
	}
	return wrap("list", table, decodeInto(raw, dst))
}

func (r *REST) Insert(ctx context.Context, table string, rec any, dst any) error {
	if err := checkTable(table); err != nil {
		return wrap("insert", table, err)
	}
	obj, err := toObject(table, rec)
	if err != nil {
		return wrap("insert", table, err)
	}
	raw, err := r.do(ctx, http.MethodPost, table, nil, obj)
	if err != nil {
		return wrap("insert", table, err)
	}
	return wrap("insert", table, decodeFirst(raw, dst, fmt.Errorf("no row returned")))
}

func (r *REST) Update(ctx context.Context, table, id string, patch any, dst any) error {
	if err := checkTable(table); err != nil {
		return wrap("update", table, err)
	}
	obj, err := toObject(table, patch)
	if err != nil {
		return wrap("update", table, err)
	}
	if _, ok := obj["id"]; ok {
		return wrap("update", table, fmt.Errorf("id cannot be updated"))
	}
	raw, err := r.do(ctx, http.MethodPatch, table, url.Values{"id": {"eq." + id}}, obj)
	if err != nil {
		return wrap("update", table, err)
	}
	return wrap("update", table, decodeFirst(raw, dst, ErrNotFound))
}

func (r *REST) Delete(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return wrap("delete", table, err)
	}
	raw, err := r.do(ctx, http.MethodDelete, table, url.Values{"id": {"eq." + id}}, nil)
	if err != nil {
		return wrap("delete", table, err)
	}
	return wrap("delete", table, decodeFirst(raw, nil, ErrNotFound))
}

func (r *REST) do(ctx context.Context, method, table string, params url.Values, body any) ([]byte, error) {
	u := r.baseURL + "/rest/v1/" + table
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", r.apiKey)
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var re restError
		if json.Unmarshal(raw, &re) == nil && re.Message != "" {
			return nil, fmt.Errorf("http %d %s: %s", resp.StatusCode, re.Code, re.Message)
		}
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}

// decodeFirst unmarshals the first element of a PostgREST representation array.
func decodeFirst(raw []byte, dst any, empty error) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	if len(rows) == 0 {
		return empty
	}
	return decodeInto(rows[0], dst)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}
