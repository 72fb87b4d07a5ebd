// Package profile reads and writes the folder ids cached on user profile documents.
package profile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/smartlens/drive-backend/internal/model"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Store persists UserDriveRecord values on the users table.
type Store struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time

	// In-memory fallback
	records map[string]model.UserDriveRecord
	mu      sync.RWMutex
}

// NewStore creates a Store. A nil client keeps records in memory.
func NewStore(client DynamoAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		now:       time.Now,
		records:   make(map[string]model.UserDriveRecord),
	}
}

// GetDriveRecord returns the cached folder ids for userID, or nil when the
// user has none yet.
func (s *Store) GetDriveRecord(ctx context.Context, userID string) (*model.UserDriveRecord, error) {
	if s.client == nil {
		s.mu.RLock()
		r, ok := s.records[userID]
		s.mu.RUnlock()
		if !ok {
			return nil, nil
		}
		return &r, nil
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
		ProjectionExpression: aws.String("user_id, drive, updated_at"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get profile from DynamoDB: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var p model.UserProfile
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return p.Drive, nil
}

// PutDriveRecord stores record on the profile of userID without touching other attributes.
func (s *Store) PutDriveRecord(ctx context.Context, userID string, record model.UserDriveRecord) error {
	now := s.now().UTC()
	record.UpdatedAt = now

	if s.client == nil {
		s.mu.Lock()
		s.records[userID] = record
		s.mu.Unlock()
		return nil
	}

	av, err := attributevalue.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal drive record: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
		UpdateExpression: aws.String("SET drive = :d, updated_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d":   av,
			":now": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update drive record: %w", err)
	}
	return nil
}
