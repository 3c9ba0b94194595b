package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maxsergeev/YD-Project-2/domain/events"
)

type mockEventBridge struct {
	mock.Mock
}

func (m *mockEventBridge) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func TestPublisher_PublishesEntryAppended(t *testing.T) {
	client := new(mockEventBridge)
	var sent *eventbridge.PutEventsInput
	client.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*eventbridge.PutEventsInput) }).
		Return(&eventbridge.PutEventsOutput{}, nil)

	p := NewPublisher(client, "diary-bus", zap.NewNop())
	event := events.NewEntryAppended("42", "2024-05-01", true, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	require.NoError(t, p.Publish(context.Background(), event))
	require.NotNil(t, sent)
	require.Len(t, sent.Entries, 1)

	entry := sent.Entries[0]
	assert.Equal(t, "diary-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, events.EventTypeEntryAppended, aws.ToString(entry.DetailType))

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "42", detail["user_id"])
	assert.Equal(t, "2024-05-01", detail["date"])
	assert.Equal(t, true, detail["created_new_user"])
	assert.NotContains(t, detail, "text")
}

func TestPublisher_ClientError(t *testing.T) {
	client := new(mockEventBridge)
	client.On("PutEvents", mock.Anything, mock.Anything).Return(nil, errors.New("no route"))

	p := NewPublisher(client, "diary-bus", zap.NewNop())
	err := p.Publish(context.Background(), events.NewEntryAppended("1", "2024-05-01", false, time.Now()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no route")
}

func TestPublisher_FailedEntries(t *testing.T) {
	client := new(mockEventBridge)
	client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries: []types.PutEventsResultEntry{
			{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("try later")},
		},
	}, nil)

	p := NewPublisher(client, "diary-bus", zap.NewNop())
	err := p.Publish(context.Background(), events.NewEntryAppended("1", "2024-05-01", false, time.Now()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 events failed")
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.Publish(context.Background(), events.NewEntryAppended("1", "2024-05-01", false, time.Now())))
}
