package shopify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"storefront-customizer-app/internal/infrastructure/metrics"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// DefaultRetries is the attempt budget for throttled (429, THROTTLED) and
// unavailable (503) Admin API answers.
const DefaultRetries = 3

// StatusCode returns the HTTP status carried by a go-shopify error, or 0 when
// the call never got an answer. GraphQL errors report 200.
func StatusCode(err error) int {
	var rateErr goshopify.RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr.GetStatus()
	}
	var respErr goshopify.ResponseError
	if errors.As(err, &respErr) {
		return respErr.GetStatus()
	}
	var decodeErr goshopify.ResponseDecodingError
	if errors.As(err, &decodeErr) {
		return decodeErr.Status
	}
	return 0
}

// AdminGateway is a thin authenticated wrapper over the versioned Admin API.
type AdminGateway struct {
	app        goshopify.App
	httpClient *http.Client
	apiVersion string
	retries    int
	logger     zerolog.Logger
}

// NewAdminGateway pins apiVersion for every call made through the gateway.
func NewAdminGateway(app goshopify.App, httpClient *http.Client, apiVersion string, retries int, logger zerolog.Logger) *AdminGateway {
	if retries < 1 {
		retries = 1
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AdminGateway{
		app:        app,
		httpClient: httpClient,
		apiVersion: apiVersion,
		retries:    retries,
		logger:     logger,
	}
}

func (g *AdminGateway) APIVersion() string { return g.apiVersion }

func (g *AdminGateway) client(shop, accessToken string) (*goshopify.Client, error) {
	client, err := goshopify.NewClient(g.app, shop, accessToken,
		goshopify.WithVersion(g.apiVersion),
		goshopify.WithHTTPClient(g.httpClient),
		goshopify.WithRetry(g.retries),
		goshopify.WithLogger(leveledLogger{g.logger.With().Str("shop", shop).Logger()}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// REST calls path (relative to /admin/api/{version}/) and decodes the JSON
// answer into out when out is non-nil.
func (g *AdminGateway) REST(ctx context.Context, shop, accessToken, method, path string, body any, out any) error {
	client, err := g.client(shop, accessToken)
	if err != nil {
		return err
	}

	start := time.Now()
	err = client.CreateAndDo(ctx, method, path, body, nil, out)
	g.observe("rest", start, err)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

// GraphQL posts a document to graphql.json and decodes "data" into out.
// Documents are parsed locally first so malformed queries never leave the process.
func (g *AdminGateway) GraphQL(ctx context.Context, shop, accessToken, query string, variables map[string]any, out any) error {
	doc, err := parser.ParseQuery(&ast.Source{Name: "admin", Input: query})
	if err != nil {
		return fmt.Errorf("invalid graphql document: %w", err)
	}
	if len(doc.Operations) == 0 {
		return fmt.Errorf("invalid graphql document: no operation")
	}

	client, err := g.client(shop, accessToken)
	if err != nil {
		return err
	}

	start := time.Now()
	err = client.GraphQL.Query(ctx, query, variables, out)
	g.observe("graphql", start, err)
	if err != nil {
		return fmt.Errorf("graphql %s: %w", doc.Operations[0].Operation, err)
	}
	return nil
}

func (g *AdminGateway) observe(kind string, start time.Time, err error) {
	status := "200"
	if err != nil {
		status = "error"
		if code := StatusCode(err); code != 0 {
			status = strconv.Itoa(code)
		}
	}
	metrics.AdminAPIDuration.WithLabelValues(kind, status).Observe(time.Since(start).Seconds())
}

// leveledLogger feeds go-shopify's request logging into zerolog. Its debug
// output carries full request and response bodies, so it goes to trace.
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Debugf(format string, v ...interface{}) { l.logger.Trace().Msgf(format, v...) }
func (l leveledLogger) Infof(format string, v ...interface{})  { l.logger.Info().Msgf(format, v...) }
func (l leveledLogger) Warnf(format string, v ...interface{})  { l.logger.Warn().Msgf(format, v...) }
func (l leveledLogger) Errorf(format string, v ...interface{}) { l.logger.Error().Msgf(format, v...) }
