package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
	"github.com/jsamuelsen/print-quote-service/internal/platform/config"
	"github.com/jsamuelsen/print-quote-service/internal/ports"
)

var (
	_ ports.QuoteRepository = (*DynamoRepository)(nil)
	_ ports.HealthChecker   = (*DynamoRepository)(nil)
)

// dynamoAPI is the subset of the DynamoDB client the repository uses.
type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// NewDynamoDBClient builds a DynamoDB client. Static credentials and a custom
// endpoint are optional and intended for DynamoDB Local.
func NewDynamoDBClient(ctx context.Context, cfg *config.DynamoDBConfig) (*dynamodb.Client, error) {
	if cfg == nil {
		return nil, errors.New("dynamodb config is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// DynamoRepository persists quotes in a DynamoDB table.
//
// Table requirements:
//   - PK: id (string)
//   - optional TTL attribute: purge_at
type DynamoRepository struct {
	ddb       dynamoAPI
	tableName string
	retention time.Duration
}

// NewDynamoRepository creates a repository over the given table.
func NewDynamoRepository(ddb dynamoAPI, tableName string, retention time.Duration) *DynamoRepository {
	return &DynamoRepository{ddb: ddb, tableName: tableName, retention: retention}
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

// Get implements ports.QuoteRepository.
func (r *DynamoRepository) Get(ctx context.Context, id string) (*domain.Quote, error) {
	rec, found, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, domain.NewNotFoundError(entityQuote, id)
	}

	return rec.toDomain()
}

func (r *DynamoRepository) get(ctx context.Context, id string) (quoteRecord, bool, error) {
	out, err := r.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return quoteRecord{}, false, r.unavailable("get quote", err)
	}

	if len(out.Item) == 0 {
		return quoteRecord{}, false, nil
	}

	var rec quoteRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return quoteRecord{}, false, fmt.Errorf("decoding quote %s: %w", id, err)
	}

	return rec, true, nil
}

// Save implements ports.QuoteRepository with a conditional put on version.
func (r *DynamoRepository) Save(ctx context.Context, q *domain.Quote, expectedVersion int64) error {
	rec := toRecord(q)
	rec.Version = expectedVersion + 1

	if r.retention > 0 {
		rec.PurgeAt = q.ExpiresAt.Add(r.retention).Unix()
	}

	av, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("encoding quote %s: %w", q.ID, err)
	}

	in := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}

	if expectedVersion == 0 {
		in.ConditionExpression = aws.String("attribute_not_exists(#id)")
		in.ExpressionAttributeNames = map[string]string{"#id": "id"}
	} else {
		in.ConditionExpression = aws.String("#version = :expected")
		in.ExpressionAttributeNames = map[string]string{"#version": "version"}
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
		}
	}

	_, err = r.ddb.PutItem(ctx, in)
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return r.explainConflict(ctx, q.ID, expectedVersion)
		}

		return r.unavailable("save quote", err)
	}

	q.Version = rec.Version

	return nil
}

// explainConflict distinguishes a missing quote from a stale version after a
// failed conditional write.
func (r *DynamoRepository) explainConflict(ctx context.Context, id string, expected int64) error {
	rec, found, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	if err := checkVersion(id, found, rec.Version, expected); err != nil {
		return err
	}

	return domain.NewConflictError(entityQuote, "modified concurrently")
}

// Delete implements ports.QuoteRepository.
func (r *DynamoRepository) Delete(ctx context.Context, id string) error {
	_, err := r.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      idKey(id),
		ConditionExpression:      aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return domain.NewNotFoundError(entityQuote, id)
		}

		return r.unavailable("delete quote", err)
	}

	return nil
}

// List implements ports.QuoteRepository. It scans the table and orders in
// memory, which is adequate for a quote table purged by TTL.
func (r *DynamoRepository) List(ctx context.Context, filter domain.QuoteFilter) ([]domain.QuoteSummary, error) {
	var (
		summaries []domain.QuoteSummary
		startKey  map[string]types.AttributeValue
	)

	for {
		out, err := r.ddb.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, r.unavailable("list quotes", err)
		}

		var page []quoteRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("decoding quotes: %w", err)
		}

		for _, rec := range page {
			summaries = append(summaries, rec.summary())
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}

		startKey = out.LastEvaluatedKey
	}

	return selectSummaries(summaries, filter), nil
}

// Name implements ports.HealthChecker.
func (r *DynamoRepository) Name() string {
	return "dynamodb"
}

// Check implements ports.HealthChecker.
func (r *DynamoRepository) Check(ctx context.Context) error {
	_, err := r.ddb.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.tableName)})
	return err
}

func (r *DynamoRepository) unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w", op, domain.NewUnavailableError("dynamodb", err.Error()))
}
