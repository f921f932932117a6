// Package openrouteservice provides a client for the OpenRouteService isochrones API.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/reachmap/reachmap/internal/isochrone"
	"github.com/reachmap/reachmap/internal/provider/resilience"
	"github.com/reachmap/reachmap/internal/telemetry"
)

const (
	// ProviderName identifies this isochrone provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// smoothing controls polygon simplification on the provider side.
	smoothing = 25

	locationTypeStart = "start"

	// maxErrorBody bounds how much of an error response is parsed.
	maxErrorBody = 64 << 10
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenRouteService client.
type ClientConfig struct {
	// APIKey is the ORS API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to ORS API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// MaxRetries bounds transient-failure retries of the default client.
	MaxRetries *uint64

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenRouteService isochrones client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
	tracer     trace.Tracer
}

// NewClient creates a new OpenRouteService client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		if cfg.MaxRetries != nil {
			clientCfg.MaxRetries = *cfg.MaxRetries
		}
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
		tracer:     telemetry.Tracer("reachmap/openrouteservice"),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// SupportedProfiles returns the supported travel profiles.
func (c *Client) SupportedProfiles() []isochrone.Profile {
	return isochrone.Profiles()
}

// Isochrones requests the reachable area for the given locations.
func (c *Client) Isochrones(ctx context.Context, req isochrone.Request) (result *isochrone.Result, err error) {
	ctx, span := c.tracer.Start(ctx, "openrouteservice.Isochrones",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("isochrone.profile", string(req.Profile)),
			attribute.String("isochrone.range_type", string(req.RangeType)),
			attribute.Float64("isochrone.magnitude", req.Magnitude),
			attribute.Int("isochrone.locations", len(req.Coordinates)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/isochrones/%s", c.baseURL, req.Profile)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Accept", "application/json, application/geo+json")

	c.logger.Debug().
		Str("profile", string(req.Profile)).
		Str("range_type", string(req.RangeType)).
		Float64("magnitude", req.Magnitude).
		Int("locations", len(req.Coordinates)).
		Msg("requesting isochrones from ORS")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		code := "REQUEST_FAILED"
		if errors.Is(err, resilience.ErrCircuitOpen) {
			code = "CIRCUIT_OPEN"
		}
		return nil, &isochrone.ProviderError{
			Provider: ProviderName,
			Code:     code,
			Message:  isochrone.DefaultProviderMessage,
			Err:      fmt.Errorf("%w: %v", isochrone.ErrProviderUnavailable, err),
		}
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, handleErrorResponse(resp.StatusCode, respBody)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &isochrone.ProviderError{
			Provider: ProviderName,
			Status:   resp.StatusCode,
			Code:     "READ_FAILED",
			Message:  isochrone.DefaultProviderMessage,
			Err:      fmt.Errorf("%w: %v", isochrone.ErrProviderUnavailable, err),
		}
	}

	fc, err := geojson.UnmarshalFeatureCollection(respBody)
	if err != nil {
		return nil, &isochrone.ProviderError{
			Provider: ProviderName,
			Status:   resp.StatusCode,
			Code:     "INVALID_RESPONSE",
			Message:  isochrone.DefaultProviderMessage,
			Err:      fmt.Errorf("%w: %v", isochrone.ErrInvalidResponse, err),
		}
	}

	result, err = c.toResult(fc, req)
	if err != nil {
		return nil, &isochrone.ProviderError{
			Provider: ProviderName,
			Status:   resp.StatusCode,
			Code:     "INVALID_RESPONSE",
			Message:  isochrone.DefaultProviderMessage,
			Err:      fmt.Errorf("%w: %v", isochrone.ErrInvalidResponse, err),
		}
	}

	c.logger.Debug().
		Int("feature_count", len(result.Features.Features)).
		Msg("received isochrones from ORS")

	return result, nil
}

// buildRequest converts a domain request to the ORS payload. Time budgets are
// sent in seconds.
func buildRequest(req isochrone.Request) orsRequest {
	scale := 1.0
	if req.RangeType == isochrone.RangeTime {
		scale = 60
	}

	locations := make([][2]float64, len(req.Coordinates))
	for i, c := range req.Coordinates {
		locations[i] = c.Pair()
	}

	out := orsRequest{
		Locations:    locations,
		Range:        []float64{req.Magnitude * scale},
		RangeType:    string(req.RangeType),
		LocationType: locationTypeStart,
		Smoothing:    smoothing,
		Attributes:   req.Options.Attributes,
	}
	if req.Options.Interval > 0 {
		out.Interval = req.Options.Interval * scale
	}

	var avoid []string
	for _, f := range req.Options.AvoidFeatures {
		if f.Valid() {
			avoid = append(avoid, string(f))
		}
	}
	var polygons *geojson.Geometry
	switch g := req.Options.AvoidPolygons.(type) {
	case orb.Polygon, orb.MultiPolygon:
		polygons = geojson.NewGeometry(g)
	}
	if len(avoid) > 0 || polygons != nil {
		out.Options = &orsOptions{AvoidFeatures: avoid, AvoidPolygons: polygons}
	}
	return out
}

// handleErrorResponse maps ORS error responses to a ProviderError carrying
// the provider's own message when one can be parsed.
func handleErrorResponse(statusCode int, body []byte) error {
	var (
		orsCode int
		message string
	)
	var orsErr orsErrorResponse
	if err := json.Unmarshal(body, &orsErr); err == nil {
		orsCode, message = orsErr.message()
	}
	if message == "" {
		message = isochrone.DefaultProviderMessage
	}

	code := "HTTP_" + strconv.Itoa(statusCode)
	if orsCode != 0 {
		code = "ORS_" + strconv.Itoa(orsCode)
	}

	var sentinel error
	switch {
	case statusCode == http.StatusTooManyRequests:
		sentinel = isochrone.ErrRateLimitExceeded
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		sentinel = isochrone.ErrProviderUnavailable
	case statusCode >= 500:
		sentinel = isochrone.ErrProviderUnavailable
	default:
		sentinel = isochrone.ErrBadRequest
	}

	return &isochrone.ProviderError{
		Provider: ProviderName,
		Status:   statusCode,
		Code:     code,
		Message:  message,
		Err:      sentinel,
	}
}

// toResult normalizes ORS features: the raw value becomes timeMinutes or
// distanceMeters and the profile is attached. A polygon without a numeric
// value is rejected.
func (c *Client) toResult(fc *geojson.FeatureCollection, req isochrone.Request) (*isochrone.Result, error) {
	out := geojson.NewFeatureCollection()

	for i, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			c.logger.Debug().Str("geometry", fmt.Sprintf("%T", f.Geometry)).Msg("skipping non-polygon isochrone feature")
			continue
		}

		nf := geojson.NewFeature(f.Geometry)
		value, ok := f.Properties[orsPropValue].(float64)
		if !ok {
			return nil, fmt.Errorf("feature %d has no numeric %q property", i, orsPropValue)
		}
		if req.RangeType == isochrone.RangeTime {
			nf.Properties[isochrone.PropTimeMinutes] = value / 60
		} else {
			nf.Properties[isochrone.PropDistanceMeters] = value
		}
		nf.Properties[isochrone.PropProfile] = string(req.Profile)
		nf.Properties[isochrone.PropGroupIndex] = f.Properties.MustInt(orsPropGroupIndex, 0)
		for _, attr := range passthroughAttributes {
			if v, ok := f.Properties[attr]; ok {
				nf.Properties[attr] = v
			}
		}
		out.Append(nf)
	}

	return &isochrone.Result{
		Features:  out,
		Profile:   req.Profile,
		RangeType: req.RangeType,
		Provider:  ProviderName,
		FetchedAt: time.Now().UTC(),
	}, nil
}
