package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// maxDatumsPerRequest is the PutMetricData batch size we send
const maxDatumsPerRequest = 20

// CloudWatchAPI is the subset of the CloudWatch client the publisher needs
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Publisher buffers metric datums in memory and ships them to CloudWatch on Flush.
// On Lambda, Flush runs once at the end of every invocation.
type Publisher struct {
	namespace string
	client    CloudWatchAPI
	now       func() time.Time

	mu     sync.Mutex
	buffer []types.MetricDatum
}

// NewPublisher creates a CloudWatch metrics publisher
func NewPublisher(namespace string, client CloudWatchAPI) *Publisher {
	return &Publisher{
		namespace: namespace,
		client:    client,
		now:       time.Now,
	}
}

func (p *Publisher) add(name string, value float64, unit types.StandardUnit, dims map[string]string) {
	dimensions := make([]types.Dimension, 0, len(dims))
	for k, v := range dims {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}

	p.mu.Lock()
	p.buffer = append(p.buffer, types.MetricDatum{
		MetricName: aws.String(name),
		Dimensions: dimensions,
		Value:      aws.Float64(value),
		Unit:       unit,
		Timestamp:  aws.Time(p.now()),
	})
	p.mu.Unlock()
}

// MessageHandled implements Recorder
func (p *Publisher) MessageHandled(intent, outcome string) {
	p.add("MessagesHandled", 1, types.StandardUnitCount, map[string]string{
		"Intent":  intent,
		"Outcome": outcome,
	})
}

// StoreOperation implements Recorder
func (p *Publisher) StoreOperation(operation string, duration time.Duration, err error) {
	p.add("StoreOperationLatency", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, map[string]string{
		"Operation": operation,
		"Status":    statusOf(err),
	})
}

// DeliveryFailed implements Recorder
func (p *Publisher) DeliveryFailed(transport string) {
	p.add("DeliveryFailures", 1, types.StandardUnitCount, map[string]string{
		"Transport": transport,
	})
}

// UserCreated implements Recorder
func (p *Publisher) UserCreated() {
	p.add("UsersCreated", 1, types.StandardUnitCount, nil)
}

// RecordQuery implements Recorder
func (p *Publisher) RecordQuery(queryType string, duration time.Duration, err error) {
	p.add("QueryLatency", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, map[string]string{
		"Query":  queryType,
		"Status": statusOf(err),
	})
}

// Pending returns the number of buffered datums
func (p *Publisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// Flush sends every buffered datum. Datums of a failed batch are dropped.
func (p *Publisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	pending := p.buffer
	p.buffer = nil
	p.mu.Unlock()

	var firstErr error
	for start := 0; start < len(pending); start += maxDatumsPerRequest {
		end := start + maxDatumsPerRequest
		if end > len(pending) {
			end = len(pending)
		}

		_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(p.namespace),
			MetricData: pending[start:end],
		})
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to put metric data: %w", err)
		}
	}
	return firstErr
}
