package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"meeting-summarizer/internal/domain"
)

const (
	attrID         = "id"
	attrOwnerID    = "ownerId"
	attrTranscript = "transcript"
	attrSummary    = "summary"
	attrCreatedAt  = "createdAt"

	// Fixed-width so the GSI range key sorts lexically in time order.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z"

	condIDAbsent     = "attribute_not_exists(#id)"
	condOwnerMatches = "attribute_exists(#id) AND #owner = :owner"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store defines the summary persistence operations. It applies no policy: the
// owner match on update and delete is a storage-level predicate.
type Store interface {
	Insert(ctx context.Context, s domain.Summary) (domain.Summary, error)
	FindByID(ctx context.Context, id string) (domain.Summary, bool, error)
	FindByOwner(ctx context.Context, ownerID string) ([]domain.Summary, error)
	UpdateIfOwnerMatches(ctx context.Context, id, ownerID string, m domain.SummaryMutation) (domain.Summary, bool, error)
	DeleteIfOwnerMatches(ctx context.Context, id, ownerID string) (bool, error)
}

var _ Store = (*Client)(nil)

// Client wraps a DynamoDB table of summaries keyed by id, with a global
// secondary index on (ownerId, createdAt).
type Client struct {
	api        dynamodbAPI
	tableName  string
	ownerIndex string
	now        func() time.Time
	newID      func() string
}

type Option func(*Client)

// WithClock overrides the time source used to stamp inserted records.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides the id source used by Insert.
func WithIDGenerator(newID func() string) Option {
	return func(c *Client) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName, ownerIndex string, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if strings.TrimSpace(ownerIndex) == "" {
		return nil, errors.New("repository: owner index name must not be empty")
	}
	c := &Client{
		api:        api,
		tableName:  tableName,
		ownerIndex: ownerIndex,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Insert assigns a fresh id and creation time and writes the record. The put
// is conditional on the id being unused so an id is never recycled.
func (c *Client) Insert(ctx context.Context, s domain.Summary) (domain.Summary, error) {
	if s.OwnerID == "" {
		return domain.Summary{}, errors.New("repository: Insert: owner id is required")
	}
	s.ID = c.newID()
	s.CreatedAt = c.now().UTC()

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(c.tableName),
		Item:                     summaryItem(s),
		ConditionExpression:      aws.String(condIDAbsent),
		ExpressionAttributeNames: map[string]string{"#id": attrID},
	})
	if err != nil {
		return domain.Summary{}, fmt.Errorf("repository: Insert: %w", err)
	}
	return s, nil
}

// FindByID returns the record with the given id regardless of owner.
func (c *Client) FindByID(ctx context.Context, id string) (domain.Summary, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Summary{}, false, fmt.Errorf("repository: FindByID get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Summary{}, false, nil
	}
	s, err := itemToSummary(out.Item)
	if err != nil {
		return domain.Summary{}, false, fmt.Errorf("repository: FindByID unmarshal: %w", err)
	}
	return s, true, nil
}

// FindByOwner queries the owner index newest first, following pagination
// until the index is exhausted.
func (c *Client) FindByOwner(ctx context.Context, ownerID string) ([]domain.Summary, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		IndexName:              aws.String(c.ownerIndex),
		KeyConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": attrOwnerID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: ownerID},
		},
		ScanIndexForward: aws.Bool(false),
	}

	summaries := make([]domain.Summary, 0)
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: FindByOwner query: %w", err)
		}
		for _, item := range out.Items {
			s, err := itemToSummary(item)
			if err != nil {
				return nil, fmt.Errorf("repository: FindByOwner unmarshal: %w", err)
			}
			summaries = append(summaries, s)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return summaries, nil
}

// UpdateIfOwnerMatches applies m only when the record exists and is owned by
// ownerID. A failed condition reports found=false, never an error.
func (c *Client) UpdateIfOwnerMatches(ctx context.Context, id, ownerID string, m domain.SummaryMutation) (domain.Summary, bool, error) {
	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 idKey(id),
		UpdateExpression:    aws.String("SET #summary = :summary, #createdAt = :createdAt"),
		ConditionExpression: aws.String(condOwnerMatches),
		ExpressionAttributeNames: map[string]string{
			"#id":        attrID,
			"#owner":     attrOwnerID,
			"#summary":   attrSummary,
			"#createdAt": attrCreatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner":     &types.AttributeValueMemberS{Value: ownerID},
			":summary":   &types.AttributeValueMemberS{Value: m.SummaryText},
			":createdAt": &types.AttributeValueMemberS{Value: formatTime(m.CreatedAt)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailure(err) {
			return domain.Summary{}, false, nil
		}
		return domain.Summary{}, false, fmt.Errorf("repository: UpdateIfOwnerMatches: %w", err)
	}
	if out == nil || len(out.Attributes) == 0 {
		return domain.Summary{}, false, errors.New("repository: UpdateIfOwnerMatches: no attributes returned")
	}
	s, err := itemToSummary(out.Attributes)
	if err != nil {
		return domain.Summary{}, false, fmt.Errorf("repository: UpdateIfOwnerMatches unmarshal: %w", err)
	}
	return s, true, nil
}

// DeleteIfOwnerMatches removes the record only when it is owned by ownerID.
func (c *Client) DeleteIfOwnerMatches(ctx context.Context, id, ownerID string) (bool, error) {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 idKey(id),
		ConditionExpression: aws.String(condOwnerMatches),
		ExpressionAttributeNames: map[string]string{
			"#id":    attrID,
			"#owner": attrOwnerID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: ownerID},
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			return false, nil
		}
		return false, fmt.Errorf("repository: DeleteIfOwnerMatches: %w", err)
	}
	return true, nil
}

func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrID: &types.AttributeValueMemberS{Value: id},
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(createdAtLayout)
}

func summaryItem(s domain.Summary) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrID:         &types.AttributeValueMemberS{Value: s.ID},
		attrOwnerID:    &types.AttributeValueMemberS{Value: s.OwnerID},
		attrTranscript: &types.AttributeValueMemberS{Value: s.Transcript},
		attrSummary:    &types.AttributeValueMemberS{Value: s.SummaryText},
		attrCreatedAt:  &types.AttributeValueMemberS{Value: formatTime(s.CreatedAt)},
	}
}

// itemToSummary converts a DynamoDB attribute map to a Summary.
func itemToSummary(item map[string]types.AttributeValue) (domain.Summary, error) {
	id, err := strAttr(item, attrID)
	if err != nil {
		return domain.Summary{}, err
	}
	owner, err := strAttr(item, attrOwnerID)
	if err != nil {
		return domain.Summary{}, err
	}
	transcript, err := strAttr(item, attrTranscript)
	if err != nil {
		return domain.Summary{}, err
	}
	summary, err := strAttr(item, attrSummary)
	if err != nil {
		return domain.Summary{}, err
	}
	rawCreated, err := strAttr(item, attrCreatedAt)
	if err != nil {
		return domain.Summary{}, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, rawCreated)
	if err != nil {
		return domain.Summary{}, fmt.Errorf("repository: parse attribute %q: %w", attrCreatedAt, err)
	}

	return domain.Summary{
		ID:          id,
		OwnerID:     owner,
		Transcript:  transcript,
		SummaryText: summary,
		CreatedAt:   createdAt,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
