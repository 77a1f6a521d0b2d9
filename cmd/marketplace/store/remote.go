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

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/vendorlink/marketplace/cmd/marketplace/errs"
	"github.com/vendorlink/marketplace/models/market"
)

type RemoteConfig struct {
	BaseURL  string
	Token    string
	RetryMax int
	Timeout  time.Duration
}

// RemoteStore is the DocumentStore backed by a hosted document API speaking
// JSON over HTTP.
type RemoteStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

// remoteError is the error body returned by the document API.
type remoteError struct {
	Error string `json:"error"`
}

func NewRemoteStore(cfg RemoteConfig, log zerolog.Logger) *RemoteStore {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.RetryMax
	retryClient.HTTPClient = &http.Client{Timeout: timeout}
	retryClient.Logger = nil
	// Hand the final response back instead of a generic "giving up" error so
	// the API's message survives.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &RemoteStore{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: retryClient.StandardClient(),
		log:        log.With().Str("component", "remote_store").Logger(),
	}
}

func (r *RemoteStore) ListSuppliers(ctx context.Context, q *SupplierQuery) ([]market.Supplier, error) {
	params := url.Values{}
	if q != nil {
		if q.Category != "" {
			params.Set("category", q.Category)
		}
		if q.City != "" {
			params.Set("city", q.City)
		}
		if q.MinRating > 0 {
			params.Set("minRating", strconv.FormatFloat(q.MinRating, 'f', -1, 64))
		}
	}

	endpoint := "/suppliers"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var suppliers []market.Supplier
	if err := r.do(ctx, http.MethodGet, endpoint, nil, &suppliers); err != nil {
		return nil, err
	}
	for i := range suppliers {
		suppliers[i].Distance = nil
		if err := suppliers[i].Validate(); err != nil {
			return nil, errs.Wrap(errs.KindValidation, "invalid supplier record", err)
		}
	}
	if suppliers == nil {
		suppliers = []market.Supplier{}
	}
	return suppliers, nil
}

func (r *RemoteStore) GetSupplier(ctx context.Context, id string) (*market.Supplier, error) {
	var s market.Supplier
	if err := r.do(ctx, http.MethodGet, "/suppliers/"+url.PathEscape(id), nil, &s); err != nil {
		return nil, r.notFoundAs(err, "supplier", id)
	}
	s.Distance = nil
	if err := s.Validate(); err != nil {
		return nil, errs.Wrap(errs.KindValidation, "invalid supplier record", err)
	}
	return &s, nil
}

func (r *RemoteStore) PutSupplier(ctx context.Context, s *market.Supplier) error {
	if err := s.Validate(); err != nil {
		return errs.Wrap(errs.KindValidation, "invalid supplier", err)
	}
	return r.do(ctx, http.MethodPut, "/suppliers/"+url.PathEscape(s.ID), s, nil)
}

func (r *RemoteStore) GetUserProfile(ctx context.Context, id string) (*market.Profile, error) {
	var p market.Profile
	if err := r.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, r.notFoundAs(err, "profile", id)
	}
	if err := p.Validate(); err != nil {
		return nil, errs.Wrap(errs.KindValidation, "invalid profile record", err)
	}
	return &p, nil
}

func (r *RemoteStore) CreateUserProfile(ctx context.Context, p *market.Profile) error {
	if err := p.Validate(); err != nil {
		return errs.Wrap(errs.KindValidation, "invalid profile", err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return r.do(ctx, http.MethodPost, "/users/"+url.PathEscape(p.ID), p, nil)
}

func (r *RemoteStore) UpdateUserProfile(ctx context.Context, p *market.Profile) error {
	if err := p.Validate(); err != nil {
		return errs.Wrap(errs.KindValidation, "invalid profile", err)
	}
	if err := r.do(ctx, http.MethodPut, "/users/"+url.PathEscape(p.ID), p, nil); err != nil {
		return r.notFoundAs(err, "profile", p.ID)
	}
	return nil
}

func (r *RemoteStore) ListFavorites(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	if err := r.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/favorites", nil, &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (r *RemoteStore) UpdateFavorites(ctx context.Context, userID string, op FavoriteOp, supplierID string) error {
	endpoint := "/users/" + url.PathEscape(userID) + "/favorites/" + url.PathEscape(supplierID)
	switch op {
	case FavoriteAdd:
		return r.do(ctx, http.MethodPut, endpoint, nil, nil)
	case FavoriteRemove:
		return r.do(ctx, http.MethodDelete, endpoint, nil, nil)
	default:
		return errs.Validation("op", fmt.Sprintf("unknown favorite operation %q", op))
	}
}

func relationshipPath(vendorID, supplierID string) string {
	return "/relationships/" + url.PathEscape(vendorID) + "/" + url.PathEscape(supplierID)
}

func (r *RemoteStore) GetRelationship(ctx context.Context, vendorID, supplierID string) (*market.Relationship, error) {
	var rel market.Relationship
	if err := r.do(ctx, http.MethodGet, relationshipPath(vendorID, supplierID), nil, &rel); err != nil {
		return nil, r.notFoundAs(err, "relationship", vendorID+"_"+supplierID)
	}
	return &rel, nil
}

func (r *RemoteStore) CreateRelationship(ctx context.Context, rel *market.Relationship) (bool, error) {
	_, err := r.GetRelationship(ctx, rel.VendorID, rel.SupplierID)
	if err == nil {
		return false, nil
	}
	if !errs.IsKind(err, errs.KindNotFound) {
		return false, err
	}
	if err := r.do(ctx, http.MethodPost, relationshipPath(rel.VendorID, rel.SupplierID), rel, nil); err != nil {
		return false, err
	}
	return true, nil
}

// AddOrder posts the order to the relationship's orders collection; the
// document API applies the increment.
func (r *RemoteStore) AddOrder(ctx context.Context, vendorID, supplierID string, o Order) (*market.Relationship, error) {
	var rel market.Relationship
	if err := r.do(ctx, http.MethodPost, relationshipPath(vendorID, supplierID)+"/orders", o, &rel); err != nil {
		return nil, r.notFoundAs(err, "relationship", vendorID+"_"+supplierID)
	}
	return &rel, nil
}

func (r *RemoteStore) SetLoyaltyBadge(ctx context.Context, vendorID, supplierID, badge string) error {
	body := map[string]string{"loyaltyBadge": badge}
	if err := r.do(ctx, http.MethodPatch, relationshipPath(vendorID, supplierID), body, nil); err != nil {
		return r.notFoundAs(err, "relationship", vendorID+"_"+supplierID)
	}
	return nil
}

func (r *RemoteStore) ListRelationships(ctx context.Context, vendorID string) ([]market.Relationship, error) {
	rels := []market.Relationship{}
	endpoint := "/relationships?" + url.Values{"vendorId": {vendorID}}.Encode()
	if err := r.do(ctx, http.MethodGet, endpoint, nil, &rels); err != nil {
		return nil, err
	}
	if rels == nil {
		rels = []market.Relationship{}
	}
	return rels, nil
}

// notFoundAs rewrites a bare 404 into a NotFound error naming the document.
func (r *RemoteStore) notFoundAs(err error, what, id string) error {
	if errs.IsKind(err, errs.KindNotFound) {
		return errs.NotFound(what, id)
	}
	return err
}

func (r *RemoteStore) do(ctx context.Context, method, endpoint string, body, response any) error {
	req, err := r.prepareRequest(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	return r.sendRequest(req, response)
}

func (r *RemoteStore) prepareRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	var bodyReader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	return req, nil
}

func (r *RemoteStore) sendRequest(req *http.Request, response any) error {
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return errs.Remote(fmt.Sprintf("request to document store failed: %v", err), err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Remote("failed to read document store response", err)
	}

	r.log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Msg("Document store response")

	if resp.StatusCode == http.StatusNotFound {
		return errs.New(errs.KindNotFound, "document not found")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.Remote(remoteMessage(resp, bodyBytes), nil)
	}

	if response != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, response); err != nil {
			return errs.Remote("failed to parse document store response", err)
		}
	}
	return nil
}

// remoteMessage prefers the API's own error text so it reaches the user unchanged.
func remoteMessage(resp *http.Response, body []byte) string {
	var e remoteError
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return resp.Status
}
