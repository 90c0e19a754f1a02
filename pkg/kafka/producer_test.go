package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mygros-backend/pkg/config"
)

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(config.KafkaConfig{Brokers: " , "}, nil)
	assert.Error(t, err)
}

func TestWriterIsCachedPerTopic(t *testing.T) {
	p, err := NewProducer(config.KafkaConfig{Brokers: "kafka-1:9092,kafka-2:9092"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, p.writeTimeout)

	orders := p.Writer("mg-order-events")
	require.NotNil(t, orders)
	assert.Same(t, orders, p.Writer("mg-order-events"))
	assert.NotSame(t, orders, p.Writer("mg-notification-events"))
	assert.Equal(t, "mg-order-events", orders.Topic)
	assert.Nil(t, p.Writer(""))

	require.NoError(t, p.Close())
	assert.Empty(t, p.writers)
}

func TestToHeadersIsSorted(t *testing.T) {
	headers := toHeaders(map[string]string{
		"event_type": "order_created",
		"aggregate":  "order",
	})
	require.Len(t, headers, 2)
	assert.Equal(t, "aggregate", headers[0].Key)
	assert.Equal(t, []byte("order_created"), headers[1].Value)
	assert.Nil(t, toHeaders(nil))
}
