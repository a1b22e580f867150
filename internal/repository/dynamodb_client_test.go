package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"meeting-summarizer/internal/domain"
)

type fakeDynamo struct {
	getOut    *dynamodb.GetItemOutput
	getErr    error
	putErr    error
	updateOut *dynamodb.UpdateItemOutput
	updateErr error
	deleteErr error
	queryOuts []*dynamodb.QueryOutput
	queryErr  error

	lastGetInput    *dynamodb.GetItemInput
	lastPutInput    *dynamodb.PutItemInput
	lastUpdateInput *dynamodb.UpdateItemInput
	lastDeleteInput *dynamodb.DeleteItemInput
	queryInputs     []*dynamodb.QueryInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdateInput = in
	return f.updateOut, f.updateErr
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDeleteInput = in
	return &dynamodb.DeleteItemOutput{}, f.deleteErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	// Copy so later pagination mutations do not rewrite recorded inputs.
	cp := *in
	f.queryInputs = append(f.queryInputs, &cp)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	idx := len(f.queryInputs) - 1
	if idx >= len(f.queryOuts) {
		return &dynamodb.QueryOutput{}, nil
	}
	return f.queryOuts[idx], nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func makeItem(id, owner, transcript, summary, createdAt string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id":         &types.AttributeValueMemberS{Value: id},
		"ownerId":    &types.AttributeValueMemberS{Value: owner},
		"transcript": &types.AttributeValueMemberS{Value: transcript},
		"summary":    &types.AttributeValueMemberS{Value: summary},
		"createdAt":  &types.AttributeValueMemberS{Value: createdAt},
	}
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "summaries", "owner-createdAt-index",
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "sum-1" }),
	)
	require.NoError(t, err)
	return c
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, "summaries", "idx")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be nil")
}

func TestNew_EmptyTableName(t *testing.T) {
	_, err := New(&fakeDynamo{}, " ", "idx")
	require.Error(t, err)
	require.Contains(t, err.Error(), "table name")
}

func TestNew_EmptyIndexName(t *testing.T) {
	_, err := New(&fakeDynamo{}, "summaries", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "index")
}

func TestInsert_AssignsIDAndCreatedAt(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	out, err := c.Insert(context.Background(), domain.Summary{
		ID:          "client-supplied",
		OwnerID:     "a@x.com",
		Transcript:  "T1",
		SummaryText: "S1",
	})
	require.NoError(t, err)
	require.Equal(t, "sum-1", out.ID)
	require.Equal(t, fixedNow, out.CreatedAt)

	in := db.lastPutInput
	require.NotNil(t, in)
	require.Equal(t, "summaries", *in.TableName)
	require.Equal(t, "attribute_not_exists(#id)", *in.ConditionExpression)
	require.Equal(t, "sum-1", in.Item["id"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "a@x.com", in.Item["ownerId"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "2026-03-01T12:00:00.000000000Z", in.Item["createdAt"].(*types.AttributeValueMemberS).Value)
}

func TestInsert_MissingOwner(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	_, err := c.Insert(context.Background(), domain.Summary{Transcript: "T", SummaryText: "S"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "owner")
	require.Nil(t, db.lastPutInput)
}

func TestInsert_DynamoError(t *testing.T) {
	db := &fakeDynamo{putErr: errors.New("ProvisionedThroughputExceededException")}
	c := mustNewClient(t, db)
	_, err := c.Insert(context.Background(), domain.Summary{OwnerID: "a@x.com", Transcript: "T", SummaryText: "S"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Insert")
}

func TestFindByID_HappyPath(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{
		Item: makeItem("sum-1", "a@x.com", "T1", "S1", "2026-03-01T12:00:00.000000000Z"),
	}}
	c := mustNewClient(t, db)

	s, found, err := c.FindByID(context.Background(), "sum-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "a@x.com", s.OwnerID)
	require.Equal(t, "S1", s.SummaryText)
	require.Equal(t, fixedNow, s.CreatedAt)
	require.True(t, *db.lastGetInput.ConsistentRead)
}

func TestFindByID_Missing(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	c := mustNewClient(t, db)
	_, found, err := c.FindByID(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, found)
}

func TestFindByID_MalformedItem(t *testing.T) {
	item := makeItem("sum-1", "a@x.com", "T1", "S1", "not-a-time")
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: item}}
	c := mustNewClient(t, db)
	_, _, err := c.FindByID(context.Background(), "sum-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "createdAt")
}

func TestFindByID_GetItemError(t *testing.T) {
	db := &fakeDynamo{getErr: errors.New("boom")}
	c := mustNewClient(t, db)
	_, _, err := c.FindByID(context.Background(), "sum-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "FindByID")
}

func TestFindByOwner_QueriesIndexNewestFirst(t *testing.T) {
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{{
		Items: []map[string]types.AttributeValue{
			makeItem("sum-2", "a@x.com", "T2", "S2", "2026-03-01T13:00:00.000000000Z"),
			makeItem("sum-1", "a@x.com", "T1", "S1", "2026-03-01T12:00:00.000000000Z"),
		},
	}}}
	c := mustNewClient(t, db)

	out, err := c.FindByOwner(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "sum-2", out[0].ID)
	require.Equal(t, "sum-1", out[1].ID)

	in := db.queryInputs[0]
	require.Equal(t, "owner-createdAt-index", *in.IndexName)
	require.Equal(t, "#owner = :owner", *in.KeyConditionExpression)
	require.False(t, *in.ScanIndexForward)
	require.Equal(t, "a@x.com", in.ExpressionAttributeValues[":owner"].(*types.AttributeValueMemberS).Value)
}

func TestFindByOwner_FollowsPagination(t *testing.T) {
	lastKey := map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "sum-2"}}
	db := &fakeDynamo{queryOuts: []*dynamodb.QueryOutput{
		{
			Items:            []map[string]types.AttributeValue{makeItem("sum-2", "a@x.com", "T2", "S2", "2026-03-01T13:00:00.000000000Z")},
			LastEvaluatedKey: lastKey,
		},
		{
			Items: []map[string]types.AttributeValue{makeItem("sum-1", "a@x.com", "T1", "S1", "2026-03-01T12:00:00.000000000Z")},
		},
	}}
	c := mustNewClient(t, db)

	out, err := c.FindByOwner(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Len(t, db.queryInputs, 2)
	require.Nil(t, db.queryInputs[0].ExclusiveStartKey)
	require.Equal(t, lastKey, db.queryInputs[1].ExclusiveStartKey)
}

func TestFindByOwner_EmptyResult(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	out, err := c.FindByOwner(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Empty(t, out)
}

func TestFindByOwner_QueryError(t *testing.T) {
	db := &fakeDynamo{queryErr: errors.New("ResourceNotFoundException")}
	c := mustNewClient(t, db)
	_, err := c.FindByOwner(context.Background(), "a@x.com")
	require.Error(t, err)
	require.Contains(t, err.Error(), "FindByOwner")
}

func TestUpdateIfOwnerMatches_HappyPath(t *testing.T) {
	editedAt := fixedNow.Add(time.Hour)
	db := &fakeDynamo{updateOut: &dynamodb.UpdateItemOutput{
		Attributes: makeItem("sum-1", "a@x.com", "T1", "new", "2026-03-01T13:00:00.000000000Z"),
	}}
	c := mustNewClient(t, db)

	s, found, err := c.UpdateIfOwnerMatches(context.Background(), "sum-1", "a@x.com", domain.SummaryMutation{
		SummaryText: "new",
		CreatedAt:   editedAt,
	})
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "new", s.SummaryText)
	require.Equal(t, editedAt, s.CreatedAt)

	in := db.lastUpdateInput
	require.Equal(t, "attribute_exists(#id) AND #owner = :owner", *in.ConditionExpression)
	require.Equal(t, "SET #summary = :summary, #createdAt = :createdAt", *in.UpdateExpression)
	require.Equal(t, types.ReturnValueAllNew, in.ReturnValues)
	require.Equal(t, "a@x.com", in.ExpressionAttributeValues[":owner"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "2026-03-01T13:00:00.000000000Z", in.ExpressionAttributeValues[":createdAt"].(*types.AttributeValueMemberS).Value)
}

func TestUpdateIfOwnerMatches_ConditionFailedIsNotFound(t *testing.T) {
	db := &fakeDynamo{updateErr: &types.ConditionalCheckFailedException{Message: strPtr("conditional request failed")}}
	c := mustNewClient(t, db)
	_, found, err := c.UpdateIfOwnerMatches(context.Background(), "sum-1", "b@y.com", domain.SummaryMutation{SummaryText: "x", CreatedAt: fixedNow})
	require.NoError(t, err)
	require.False(t, found)
}

func TestUpdateIfOwnerMatches_DynamoError(t *testing.T) {
	db := &fakeDynamo{updateErr: errors.New("internal server error")}
	c := mustNewClient(t, db)
	_, _, err := c.UpdateIfOwnerMatches(context.Background(), "sum-1", "a@x.com", domain.SummaryMutation{SummaryText: "x", CreatedAt: fixedNow})
	require.Error(t, err)
	require.Contains(t, err.Error(), "UpdateIfOwnerMatches")
}

func TestUpdateIfOwnerMatches_NoAttributes(t *testing.T) {
	db := &fakeDynamo{updateOut: &dynamodb.UpdateItemOutput{}}
	c := mustNewClient(t, db)
	_, _, err := c.UpdateIfOwnerMatches(context.Background(), "sum-1", "a@x.com", domain.SummaryMutation{SummaryText: "x", CreatedAt: fixedNow})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no attributes")
}

func TestDeleteIfOwnerMatches_HappyPath(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	deleted, err := c.DeleteIfOwnerMatches(context.Background(), "sum-1", "a@x.com")
	require.NoError(t, err)
	require.True(t, deleted)
	require.Equal(t, "attribute_exists(#id) AND #owner = :owner", *db.lastDeleteInput.ConditionExpression)
	require.Equal(t, "sum-1", db.lastDeleteInput.Key["id"].(*types.AttributeValueMemberS).Value)
}

func TestDeleteIfOwnerMatches_ConditionFailed(t *testing.T) {
	db := &fakeDynamo{deleteErr: &types.ConditionalCheckFailedException{}}
	c := mustNewClient(t, db)
	deleted, err := c.DeleteIfOwnerMatches(context.Background(), "sum-1", "b@y.com")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestDeleteIfOwnerMatches_DynamoError(t *testing.T) {
	db := &fakeDynamo{deleteErr: errors.New("transaction canceled")}
	c := mustNewClient(t, db)
	_, err := c.DeleteIfOwnerMatches(context.Background(), "sum-1", "a@x.com")
	require.Error(t, err)
	require.Contains(t, err.Error(), "DeleteIfOwnerMatches")
}

func TestFormatTime_SortsLexically(t *testing.T) {
	whole := formatTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	frac := formatTime(time.Date(2026, 3, 1, 12, 0, 0, 100, time.UTC))
	require.Less(t, whole, frac)
}

func strPtr(s string) *string { return &s }
