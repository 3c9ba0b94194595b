package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/maxsergeev/YD-Project-2/application/ports"
	"github.com/maxsergeev/YD-Project-2/domain/core/valueobjects"
	pkgerrors "github.com/maxsergeev/YD-Project-2/pkg/errors"
)

// Entity types stored in the single table
const (
	EntityTypeDiaryDay    = "DIARY_DAY"
	EntityTypeUserProfile = "USER_PROFILE"
)

// API is the subset of the DynamoDB client the store needs
type API interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// ProfileRecord marks that a user has a diary
type ProfileRecord struct {
	PK         string `dynamodbav:"PK"`         // USER#<user_id>
	SK         string `dynamodbav:"SK"`         // PROFILE
	EntityType string `dynamodbav:"EntityType"` // USER_PROFILE
	UserID     string `dynamodbav:"UserID"`
	CreatedAt  string `dynamodbav:"CreatedAt"` // RFC3339 timestamp
}

// dayRecord is one page of a diary: every entry of a user for one date
type dayRecord struct {
	Entries []string `dynamodbav:"Entries"`
}

// EntryStore implements ports.EntryStore on a single DynamoDB table.
// Each (user, date) pair is one item whose Entries list only grows.
type EntryStore struct {
	client    API
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewEntryStore creates a new DynamoDB entry store
func NewEntryStore(client API, tableName string, logger *zap.Logger) *EntryStore {
	return &EntryStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

func userKey(userID valueobjects.UserID) string {
	return fmt.Sprintf("USER#%s", userID.String())
}

func dayKey(date valueobjects.DiaryDate) string {
	return fmt.Sprintf("DATE#%s", date.String())
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// AppendEntry implements ports.EntryStore. DynamoDB applies updates to one
// item serially, so list_append never loses a concurrent entry.
func (s *EntryStore) AppendEntry(ctx context.Context, userID valueobjects.UserID, date valueobjects.DiaryDate, text string) (ports.AppendResult, error) {
	now := s.now().UTC().Format(time.RFC3339)

	update := expression.Set(
		expression.Name("Entries"),
		expression.ListAppend(
			expression.Name("Entries").IfNotExists(expression.Value([]string{})),
			expression.Value([]string{text}),
		),
	).
		Set(expression.Name("EntityType"), expression.Value(EntityTypeDiaryDay)).
		Set(expression.Name("UserID"), expression.Value(userID.String())).
		Set(expression.Name("EntryDate"), expression.Value(date.String())).
		Set(expression.Name("UpdatedAt"), expression.Value(now))

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return ports.AppendResult{}, pkgerrors.NewInternalError("failed to build update expression").WithCause(err)
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       itemKey(userKey(userID), dayKey(date)),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedOld,
	})
	if err != nil {
		return ports.AppendResult{}, storageError("append_entry", err)
	}

	// An existing page returns its previous attributes; only a new page can
	// belong to a new user.
	if len(out.Attributes) > 0 {
		return ports.AppendResult{}, nil
	}

	created, err := s.createProfile(ctx, userID, now)
	if err != nil {
		// The entry is stored; only the new-user flag is uncertain.
		s.logger.Warn("Failed to record user profile",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return ports.AppendResult{}, nil
	}
	return ports.AppendResult{CreatedNewUser: created}, nil
}

// createProfile writes the profile item once. It reports false when it already exists.
func (s *EntryStore) createProfile(ctx context.Context, userID valueobjects.UserID, now string) (bool, error) {
	item, err := attributevalue.MarshalMap(ProfileRecord{
		PK:         userKey(userID),
		SK:         "PROFILE",
		EntityType: EntityTypeUserProfile,
		UserID:     userID.String(),
		CreatedAt:  now,
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal profile: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return false, fmt.Errorf("failed to build condition expression: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.tableName),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetEntries implements ports.EntryStore
func (s *EntryStore) GetEntries(ctx context.Context, userID valueobjects.UserID, date valueobjects.DiaryDate) ([]string, error) {
	proj := expression.NamesList(expression.Name("Entries"))
	expr, err := expression.NewBuilder().WithProjection(proj).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build projection").WithCause(err)
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(s.tableName),
		Key:                      itemKey(userKey(userID), dayKey(date)),
		ProjectionExpression:     expr.Projection(),
		ExpressionAttributeNames: expr.Names(),
		ConsistentRead:           aws.Bool(true),
	})
	if err != nil {
		return nil, storageError("get_entries", err)
	}
	if len(out.Item) == 0 {
		return []string{}, nil
	}

	var record dayRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, pkgerrors.NewInternalError("failed to unmarshal diary day").WithCause(err)
	}
	if record.Entries == nil {
		return []string{}, nil
	}
	return record.Entries, nil
}

// Ping implements ports.EntryStore
func (s *EntryStore) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		return storageError("ping", err)
	}
	return nil
}

// EnsureTable creates the table when it does not exist. Meant for DynamoDB
// Local; deployed tables are provisioned by infrastructure code.
func (s *EntryStore) EnsureTable(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return pkgerrors.NewStorageUnavailableError("describe_table", err)
	}

	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("PK"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("SK"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return pkgerrors.NewStorageUnavailableError("create_table", err)
	}

	s.logger.Info("Created DynamoDB table", zap.String("table", s.tableName))
	return nil
}

// storageError wraps an SDK failure, keeping the DynamoDB error code when there is one
func storageError(op string, err error) error {
	appErr := pkgerrors.NewStorageUnavailableError(op, err)
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		appErr = appErr.WithCode(apiErr.ErrorCode())
	}
	return appErr
}

// Close implements ports.EntryStore. The SDK client holds no connection to release.
func (s *EntryStore) Close() error {
	return nil
}

var _ ports.EntryStore = (*EntryStore)(nil)
