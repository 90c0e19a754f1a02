package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
)

// SalesEventRow is one row of the sales events table. Amounts use NUMERIC.
type SalesEventRow struct {
	EventID        string              `bigquery:"event_id"`
	EventType      string              `bigquery:"event_type"`
	OrderID        string              `bigquery:"order_id"`
	OrderNumber    int64               `bigquery:"order_number"`
	BuyerID        string              `bigquery:"buyer_id"`
	OrderStatus    string              `bigquery:"order_status"`
	TrackingStatus bigquery.NullString `bigquery:"tracking_status"`
	PaymentMethod  bigquery.NullString `bigquery:"payment_method"`
	DeliveryZone   bigquery.NullString `bigquery:"delivery_zone"`
	TotalAmount    *big.Rat            `bigquery:"total_amount"`
	OccurredAt     time.Time           `bigquery:"occurred_at"`
	IngestedAt     time.Time           `bigquery:"ingested_at"`
}

// NullString converts an optional value into a BigQuery nullable string.
func NullString(v string) bigquery.NullString {
	return bigquery.NullString{StringVal: v, Valid: v != ""}
}
