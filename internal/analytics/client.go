package analytics

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/Lumenline/optimizer-dashboard/internal/gcpcred"
)

// Client reads precomputed optimization metrics from BigQuery.
type Client struct {
	bq      *bigquery.Client
	dataset string
	timeout time.Duration
	logger  *zap.Logger
}

// Options configures client construction.
type Options struct {
	// ProjectID overrides the project resolved from the credential.
	ProjectID string
	Dataset   string
	Timeout   time.Duration
	// AllowAmbient permits application-default credentials when res is nil.
	AllowAmbient bool
}

// NewClient builds a BigQuery client from a resolved credential. When res
// is nil and ambient identity is allowed, the client library's default
// credential chain (GOOGLE_APPLICATION_CREDENTIALS file, metadata server,
// gcloud login) takes over.
func NewClient(ctx context.Context, res *gcpcred.Resolution, opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	projectID := opts.ProjectID
	var clientOpts []option.ClientOption

	if res != nil {
		raw, err := res.Credential.JSON()
		if err != nil {
			return nil, fmt.Errorf("render credential JSON: %w", err)
		}
		clientOpts = append(clientOpts, option.WithCredentialsJSON(raw))
		if projectID == "" {
			projectID = res.ProjectID
		}
	} else if !opts.AllowAmbient {
		return nil, fmt.Errorf("no explicit credential resolved and ambient credentials are disabled")
	}

	if projectID == "" {
		projectID = bigquery.DetectProjectID
	}

	bq, err := bigquery.NewClient(ctx, projectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger.Info("bq.client_ready",
		zap.String("project_id", bq.Project()),
		zap.String("dataset", opts.Dataset),
		zap.Bool("explicit_credential", res != nil))

	return &Client{
		bq:      bq,
		dataset: opts.Dataset,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Ping runs a trivial query to verify connectivity and authorization.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	q := c.bq.Query("SELECT 1")
	_, err := q.Read(ctx)
	if err != nil {
		return fmt.Errorf("bigquery ping failed: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.bq.Close()
}

// table qualifies a table name with the configured dataset.
func (c *Client) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", c.bq.Project(), c.dataset, name)
}
