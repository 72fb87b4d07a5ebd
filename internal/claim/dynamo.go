package claim

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/smartlens/drive-backend/internal/model"
)

// DynamoAPI is the subset of *dynamodb.Client methods used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps claims in a DynamoDB table keyed by claim_key.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewDynamoStore creates a new DynamoStore.
func NewDynamoStore(client DynamoAPI, tableName string, ttl time.Duration) *DynamoStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		now:       time.Now,
	}
}

func keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"claim_key": &types.AttributeValueMemberS{Value: key},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// Claim writes a pending claim unless a live one already exists.
// Condition: attribute_not_exists(claim_key) OR (attribute_not_exists(folder_id) AND expires_at < :now)
func (s *DynamoStore) Claim(ctx context.Context, key, owner string) (*model.FolderClaim, bool, error) {
	// A conflicting claim can be released between our put and our read; try again then.
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		c, won, err := s.tryClaim(ctx, key, owner)
		if err != nil || won || c != nil {
			return c, won, err
		}
	}
	return nil, false, fmt.Errorf("claim %q kept vanishing after conflict", key)
}

const maxClaimAttempts = 3

func (s *DynamoStore) tryClaim(ctx context.Context, key, owner string) (*model.FolderClaim, bool, error) {
	now := s.now().Unix()
	c := model.FolderClaim{
		ClaimKey:  key,
		Owner:     owner,
		ExpiresAt: now + int64(s.ttl.Seconds()),
	}

	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal claim: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
		ConditionExpression: aws.String(
			"attribute_not_exists(claim_key) OR (attribute_not_exists(folder_id) AND expires_at < :now)",
		),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
		},
	})
	if err != nil {
		if !isConditionFailed(err) {
			return nil, false, fmt.Errorf("failed to put claim: %w", err)
		}
		existing, err := s.Get(ctx, key)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	return &c, true, nil
}

// Commit sets folder_id on a claim held by owner.
func (s *DynamoStore) Commit(ctx context.Context, key, owner, folderID string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 keyAttr(key),
		UpdateExpression:    aws.String("SET folder_id = :fid"),
		ConditionExpression: aws.String("owner_token = :owner"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":fid":   &types.AttributeValueMemberS{Value: folderID},
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrNotOwner
		}
		return fmt.Errorf("failed to commit claim: %w", err)
	}
	return nil
}

// Get reads a claim with strong consistency.
func (s *DynamoStore) Get(ctx context.Context, key string) (*model.FolderClaim, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            keyAttr(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var c model.FolderClaim
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claim: %w", err)
	}
	return &c, nil
}

// Release removes a pending claim held by owner.
func (s *DynamoStore) Release(ctx context.Context, key, owner string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 keyAttr(key),
		ConditionExpression: aws.String("owner_token = :owner AND attribute_not_exists(folder_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("failed to release claim: %w", err)
	}
	return nil
}

// Discard removes a committed claim if it still points at folderID.
func (s *DynamoStore) Discard(ctx context.Context, key, folderID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 keyAttr(key),
		ConditionExpression: aws.String("folder_id = :fid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":fid": &types.AttributeValueMemberS{Value: folderID},
		},
	})
	if err != nil && !isConditionFailed(err) {
		return fmt.Errorf("failed to discard claim: %w", err)
	}
	return nil
}
