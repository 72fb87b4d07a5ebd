package handler_test

import (
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smartlens/drive-backend/internal/adapter/memory"
	"github.com/smartlens/drive-backend/internal/claim"
	"github.com/smartlens/drive-backend/internal/drivestructure"
	"github.com/smartlens/drive-backend/internal/handler"
	"github.com/smartlens/drive-backend/internal/profile"
)

const (
	testUserID    = "test-user-123"
	testUserEmail = "test@example.com"
	testUserName  = "Test User"
	testAdmin     = "admin@example.com"
	testService   = "drive-bot@example.iam.gserviceaccount.com"

	testInternalKey = "test-internal-key"
)

func makeToken(userID string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": testUserEmail,
		"name":  testUserName,
		"exp":   time.Now().Add(1 * time.Hour).Unix(),
	})
	s, _ := token.SignedString([]byte(testJWTSecret))
	return s
}

func makeRequest(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Headers: map[string]string{
			"Authorization": "Bearer " + makeToken(testUserID),
		},
		PathParameters: map[string]string{},
		Body:           body,
	}
}

// makeServiceRequest builds a backend-to-backend request carrying only the internal key.
func makeServiceRequest(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod:     method,
		Path:           path,
		Headers:        map[string]string{handler.InternalKeyHeader: testInternalKey},
		PathParameters: map[string]string{},
		Body:           body,
	}
}

func newTestHandler(t *testing.T) (*handler.DriveHandler, *memory.MemoryDrive) {
	t.Helper()
	drive := memory.NewMemoryDrive()
	svc := drivestructure.NewService(drive, profile.NewStore(nil, "Users"), drivestructure.Options{
		AdminEmail:   testAdmin,
		ServiceEmail: testService,
		Claims:       claim.NewMemoryStore(0),
		ClaimPoll:    time.Millisecond,
	})
	return handler.NewDriveHandler(svc, testJWTSecret, testInternalKey, nil), drive
}
