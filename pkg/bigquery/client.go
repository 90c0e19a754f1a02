package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/mygros-backend/pkg/config"
	"github.com/angelmondragon/mygros-backend/pkg/logger"
)

const schemaCheckTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// Client streams analytics rows into one dataset.
type Client struct {
	bq           *bigquery.Client
	dataset      *bigquery.Dataset
	salesTable   string
	createTables bool
	logg         *logger.Logger
}

// NewClient connects to BigQuery and checks the dataset and sales table are
// reachable, creating the table first when cfg.CreateTables is set.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	datasetID := strings.TrimSpace(cfg.Dataset)
	salesTable := strings.TrimSpace(cfg.SalesEventsTable)
	switch {
	case projectID == "":
		return nil, errProjectIDRequired
	case datasetID == "":
		return nil, errDatasetRequired
	case salesTable == "":
		return nil, errTableNameRequired
	}

	bq, err := bigquery.NewClient(ctx, projectID, credentials(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{
		bq:           bq,
		dataset:      bq.Dataset(datasetID),
		salesTable:   salesTable,
		createTables: cfg.CreateTables,
		logg:         logg,
	}
	if err := c.ensureSchema(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project": projectID,
			"dataset": datasetID,
			"table":   salesTable,
		}), "bigquery client initialized")
	}
	return c, nil
}

// credentials prefers inline JSON over a key file; with neither the client
// falls back to application default credentials.
func credentials(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// salesTableMetadata describes the sales table the worker creates on demand.
func salesTableMetadata() (*bigquery.TableMetadata, error) {
	schema, err := bigquery.InferSchema(SalesEventRow{})
	if err != nil {
		return nil, fmt.Errorf("infer sales schema: %w", err)
	}
	return &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "occurred_at",
		},
		Clustering: &bigquery.Clustering{Fields: []string{"event_type", "buyer_id"}},
	}, nil
}

func (c *Client) ensureSchema(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, schemaCheckTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
	}

	table := c.dataset.Table(c.salesTable)
	_, err := table.Metadata(ctx)
	switch {
	case err == nil:
		return nil
	case !isNotFound(err):
		return fmt.Errorf("checking table %q: %w", c.salesTable, err)
	case !c.createTables:
		return fmt.Errorf("table %q does not exist", c.salesTable)
	}

	meta, err := salesTableMetadata()
	if err != nil {
		return err
	}
	if err := table.Create(ctx, meta); err != nil && !isConflict(err) {
		return fmt.Errorf("creating table %q: %w", c.salesTable, err)
	}
	if c.logg != nil {
		c.logg.Info(c.logg.WithField(ctx, "table", c.salesTable), "bigquery sales table created")
	}
	return nil
}

// Ping re-checks that the dataset and sales table are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errClientNotInitialized
	}
	return c.ensureSchema(ctx)
}

// InsertSalesEvents streams rows into the sales table. The event id doubles
// as the insert id, so a redelivered event is deduplicated by BigQuery.
func (c *Client) InsertSalesEvents(ctx context.Context, rows []*SalesEventRow) error {
	if len(rows) == 0 {
		return nil
	}
	if c == nil || c.bq == nil {
		return errClientNotInitialized
	}
	savers := make([]*bigquery.StructSaver, 0, len(rows))
	for _, row := range rows {
		savers = append(savers, &bigquery.StructSaver{Struct: row, InsertID: row.EventID})
	}
	return c.dataset.Table(c.salesTable).Inserter().Put(ctx, savers)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func isNotFound(err error) bool {
	return apiStatus(err) == http.StatusNotFound
}

func isConflict(err error) bool {
	return apiStatus(err) == http.StatusConflict
}

func apiStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
