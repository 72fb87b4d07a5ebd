package claim

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/smartlens/drive-backend/internal/model"
)

type fakeDynamo struct {
	putErr    error
	updateErr error
	deleteErr error
	item      map[string]types.AttributeValue

	lastPut    *dynamodb.PutItemInput
	lastUpdate *dynamodb.UpdateItemInput
	lastDelete *dynamodb.DeleteItemInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.item}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPut = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdate = in
	return &dynamodb.UpdateItemOutput{}, f.updateErr
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDelete = in
	return &dynamodb.DeleteItemOutput{}, f.deleteErr
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func TestDynamoStore_ClaimWins(t *testing.T) {
	fake := &fakeDynamo{}
	s := NewDynamoStore(fake, "FolderClaims", 30*time.Second)
	s.now = func() time.Time { return time.Unix(1000, 0) }

	c, won, err := s.Claim(context.Background(), "p/Users", "owner-1")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if !won {
		t.Fatal("Expected claim to win")
	}
	if c.ExpiresAt != 1030 {
		t.Errorf("Expected expiry 1030, got %d", c.ExpiresAt)
	}
	if *fake.lastPut.TableName != "FolderClaims" {
		t.Errorf("Unexpected table %s", *fake.lastPut.TableName)
	}
	if !strings.Contains(*fake.lastPut.ConditionExpression, "attribute_not_exists(claim_key)") {
		t.Errorf("Missing create-if-absent condition: %s", *fake.lastPut.ConditionExpression)
	}
	if _, ok := fake.lastPut.Item["folder_id"]; ok {
		t.Error("Pending claim must not carry folder_id")
	}
}

func TestDynamoStore_ClaimLostReturnsExisting(t *testing.T) {
	existing, _ := attributevalue.MarshalMap(model.FolderClaim{
		ClaimKey: "p/Users", Owner: "owner-1", FolderID: "folder-1", ExpiresAt: 1,
	})
	fake := &fakeDynamo{putErr: conditionFailed(), item: existing}
	s := NewDynamoStore(fake, "FolderClaims", 0)

	c, won, err := s.Claim(context.Background(), "p/Users", "owner-2")
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if won {
		t.Error("Expected claim to be lost")
	}
	if c.FolderID != "folder-1" || c.Owner != "owner-1" {
		t.Errorf("Unexpected existing claim: %+v", c)
	}
}

func TestDynamoStore_ClaimPropagatesOtherErrors(t *testing.T) {
	fake := &fakeDynamo{putErr: errors.New("throttled")}
	s := NewDynamoStore(fake, "FolderClaims", 0)

	_, _, err := s.Claim(context.Background(), "k", "owner")
	if err == nil {
		t.Fatal("Expected error")
	}
}

func TestDynamoStore_CommitNotOwner(t *testing.T) {
	fake := &fakeDynamo{updateErr: conditionFailed()}
	s := NewDynamoStore(fake, "FolderClaims", 0)

	err := s.Commit(context.Background(), "k", "owner", "folder")
	if !errors.Is(err, ErrNotOwner) {
		t.Errorf("Expected ErrNotOwner, got %v", err)
	}
}

func TestDynamoStore_ReleaseIgnoresConditionFailure(t *testing.T) {
	fake := &fakeDynamo{deleteErr: conditionFailed()}
	s := NewDynamoStore(fake, "FolderClaims", 0)

	if err := s.Release(context.Background(), "k", "owner"); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
	if err := s.Discard(context.Background(), "k", "folder"); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}

func TestDynamoStore_GetMissing(t *testing.T) {
	s := NewDynamoStore(&fakeDynamo{}, "FolderClaims", 0)

	c, err := s.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if c != nil {
		t.Errorf("Expected nil claim, got %+v", c)
	}
}

func TestDynamoStore_ClaimVanishedConflictGivesUp(t *testing.T) {
	fake := &fakeDynamo{putErr: conditionFailed()}
	s := NewDynamoStore(fake, "FolderClaims", 0)

	_, won, err := s.Claim(context.Background(), "k", "owner")
	if err == nil {
		t.Fatal("Expected error when the conflicting claim keeps vanishing")
	}
	if won {
		t.Error("Expected claim not to be won")
	}
}
