package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/smartlens/drive-backend/internal/adapter"
	"github.com/smartlens/drive-backend/internal/adapter/memory"
	"github.com/smartlens/drive-backend/internal/drivestructure"
	"github.com/smartlens/drive-backend/internal/handler"
	"github.com/smartlens/drive-backend/internal/profile"
)

type folderBody struct {
	FolderID     string `json:"folderId"`
	Name         string `json:"name"`
	ParentID     string `json:"parentId"`
	FailedGrants []struct {
		Op     string `json:"op"`
		Email  string `json:"email"`
		Reason string `json:"reason"`
	} `json:"failedGrants"`
}

func decodeFolder(t *testing.T, resp events.APIGatewayProxyResponse) folderBody {
	t.Helper()
	var body folderBody
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("Failed to decode response %q: %v", resp.Body, err)
	}
	return body
}

func TestDriveHandler_Unauthorized(t *testing.T) {
	h, _ := newTestHandler(t)
	ctx := context.Background()
	req := events.APIGatewayProxyRequest{Headers: map[string]string{}, PathParameters: map[string]string{"chatId": "c1"}}

	calls := map[string]func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error){
		"system":   h.EnsureSystem,
		"me":       h.EnsureMe,
		"group":    h.EnsureGroup,
		"dm":       h.EnsureDM,
		"task":     h.EnsureTask,
		"thread":   h.EnsureThread,
		"messages": h.CreateMessageFolder,
		"revoke":   h.RevokeAccess,
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			resp, err := call(ctx, req)
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", resp.StatusCode)
			}
		})
	}
}

func TestDriveHandler_EnsureSystem(t *testing.T) {
	h, drive := newTestHandler(t)

	resp, _ := h.EnsureSystem(context.Background(), makeRequest("POST", "/drive/system", ""))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}
	var body struct {
		RootID       string `json:"rootId"`
		SharedID     string `json:"sharedId"`
		PeopleID     string `json:"peopleId"`
		FailedGrants []any  `json:"failedGrants"`
	}
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RootID == "" || body.SharedID == "" || body.PeopleID == "" {
		t.Errorf("Expected all system ids, got %s", resp.Body)
	}
	if body.FailedGrants == nil || len(body.FailedGrants) != 0 {
		t.Errorf("Expected empty failedGrants array, got %s", resp.Body)
	}
	if drive.GrantedEmails(body.RootID)[testAdmin] != adapter.RoleWriter {
		t.Error("Expected admin writer on root")
	}
}

func TestDriveHandler_EnsureMe(t *testing.T) {
	h, drive := newTestHandler(t)
	ctx := context.Background()

	resp, _ := h.EnsureMe(ctx, makeRequest("POST", "/drive/me", `{"displayName":"Alice"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}
	var body struct {
		RootFolderID        string `json:"rootFolderId"`
		ContentRootFolderID string `json:"contentRootFolderId"`
	}
	json.Unmarshal([]byte(resp.Body), &body)
	if body.ContentRootFolderID == "" {
		t.Fatalf("Expected content root id, got %s", resp.Body)
	}

	meta, err := drive.GetMetadata(ctx, body.RootFolderID)
	if err != nil {
		t.Fatalf("GetMetadata failed: %v", err)
	}
	if meta.Name != "[User] Alice_test-u" {
		t.Errorf("Unexpected user folder name %q", meta.Name)
	}
	if drive.GrantedEmails(body.RootFolderID)[testUserEmail] != adapter.RoleWriter {
		t.Error("Expected caller to get writer on their root")
	}

	// Without a body the token name is used and the same tree comes back.
	again, _ := h.EnsureMe(ctx, makeRequest("POST", "/drive/me", ""))
	var second struct {
		ContentRootFolderID string `json:"contentRootFolderId"`
	}
	json.Unmarshal([]byte(again.Body), &second)
	if again.StatusCode != http.StatusOK || second.ContentRootFolderID == "" {
		t.Fatalf("Second call failed: %d %s", again.StatusCode, again.Body)
	}
}

func TestDriveHandler_EnsureGroup(t *testing.T) {
	h, drive := newTestHandler(t)

	req := makeServiceRequest("POST", "/drive/groups/chat1", `{"name":"Team","participants":["a@x.com","nobody"]}`)
	req.PathParameters["chatId"] = "chat1"
	resp, _ := h.EnsureGroup(context.Background(), req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}
	body := decodeFolder(t, resp)
	if body.Name != "Team_chat1" {
		t.Errorf("Expected name 'Team_chat1', got %q", body.Name)
	}
	if drive.GrantedEmails(body.FolderID)["a@x.com"] != adapter.RoleWriter {
		t.Error("Expected participant to be granted")
	}
	if len(body.FailedGrants) != 1 || body.FailedGrants[0].Email != "nobody" || body.FailedGrants[0].Reason == "" {
		t.Errorf("Expected one failed grant for 'nobody', got %+v", body.FailedGrants)
	}
}

func TestDriveHandler_EnsureGroup_BadInput(t *testing.T) {
	h, _ := newTestHandler(t)
	ctx := context.Background()

	missing := makeServiceRequest("POST", "/drive/groups/", `{}`)
	resp, _ := h.EnsureGroup(ctx, missing)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing chat id, got %d", resp.StatusCode)
	}

	bad := makeServiceRequest("POST", "/drive/groups/c1", `{not json`)
	bad.PathParameters["chatId"] = "c1"
	resp, _ = h.EnsureGroup(ctx, bad)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad body, got %d", resp.StatusCode)
	}
}

func TestDriveHandler_EnsureDM(t *testing.T) {
	h, drive := newTestHandler(t)
	ctx := context.Background()

	resp, _ := h.EnsureDM(ctx, makeRequest("POST", "/drive/dms", `{"userIds":["zed",""]}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for incomplete pair, got %d", resp.StatusCode)
	}

	resp, _ = h.EnsureDM(ctx, makeRequest("POST", "/drive/dms", `{"userIds":["a","b"]}`))
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403 for outsider, got %d", resp.StatusCode)
	}

	resp, _ = h.EnsureDM(ctx, makeRequest("POST", "/drive/dms", `{"userIds":["`+testUserID+`","abc"],"participants":["a@x.com"]}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}
	body := decodeFolder(t, resp)
	if body.Name != "DM_abc_"+testUserID {
		t.Errorf("Expected sorted DM name, got %q", body.Name)
	}
	// A session only shares the folder with its own email.
	granted := drive.GrantedEmails(body.FolderID)
	if _, ok := granted["a@x.com"]; ok {
		t.Error("Expected session-supplied participants to be ignored")
	}
	if granted[testUserEmail] != adapter.RoleWriter {
		t.Error("Expected the caller to be granted")
	}
}

func TestDriveHandler_EnsureDM_ServiceCall(t *testing.T) {
	h, drive := newTestHandler(t)

	resp, _ := h.EnsureDM(context.Background(), makeServiceRequest("POST", "/drive/dms", `{"userIds":["a","b"],"participants":["a@x.com","b@x.com"]}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}
	granted := drive.GrantedEmails(decodeFolder(t, resp).FolderID)
	for _, e := range []string{"a@x.com", "b@x.com"} {
		if granted[e] != adapter.RoleWriter {
			t.Errorf("Expected %s to be granted", e)
		}
	}
}

func TestDriveHandler_TaskAndThread(t *testing.T) {
	h, drive := newTestHandler(t)
	ctx := context.Background()

	task := makeServiceRequest("POST", "/drive/tasks/task-123456789", `{"title":"Launch"}`)
	task.PathParameters["taskId"] = "task-123456789"
	resp, _ := h.EnsureTask(ctx, task)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}
	tb := decodeFolder(t, resp)
	if tb.Name != "Task_Launch_task-123" {
		t.Errorf("Unexpected task folder name %q", tb.Name)
	}
	if drive.GrantedEmails(tb.FolderID)[testAdmin] != adapter.RoleWriter {
		t.Error("Expected admin on task folder")
	}

	thread := makeServiceRequest("POST", "/drive/threads/th9", `{"title":"Ideas"}`)
	thread.PathParameters["threadId"] = "th9"
	resp, _ = h.EnsureThread(ctx, thread)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}
	if body := decodeFolder(t, resp); body.Name != "Ideas_th9" || body.ParentID != tb.ParentID {
		t.Errorf("Expected thread beside task under Threads, got %+v", body)
	}
}

func TestDriveHandler_CreateMessageFolder(t *testing.T) {
	h, drive := newTestHandler(t)
	ctx := context.Background()

	parent, _ := drive.CreateFolder(ctx, "Team_chat1", adapter.RootAlias)
	req := makeServiceRequest("POST", "/drive/folders/"+parent.ID+"/messages", `{"userId":"`+testUserID+`"}`)
	req.PathParameters["folderId"] = parent.ID

	resp, _ := h.CreateMessageFolder(ctx, req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", resp.StatusCode, resp.Body)
	}
	body := decodeFolder(t, resp)
	if !strings.HasPrefix(body.Name, testUserID+"_") || body.ParentID != parent.ID {
		t.Errorf("Unexpected message folder %+v", body)
	}

	missing := makeServiceRequest("POST", "/drive/folders/nope/messages", `{"userId":"u1"}`)
	missing.PathParameters["folderId"] = "nope"
	resp, _ = h.CreateMessageFolder(ctx, missing)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown parent, got %d", resp.StatusCode)
	}

	noUser := makeServiceRequest("POST", "/drive/folders/"+parent.ID+"/messages", "")
	noUser.PathParameters["folderId"] = parent.ID
	resp, _ = h.CreateMessageFolder(ctx, noUser)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without a user id, got %d", resp.StatusCode)
	}
}

func TestDriveHandler_RevokeAccess(t *testing.T) {
	h, drive := newTestHandler(t)
	ctx := context.Background()

	f, _ := drive.CreateFolder(ctx, "F", adapter.RootAlias)
	drive.GrantAccess(ctx, f.ID, "a@x.com", adapter.RoleWriter)

	req := makeServiceRequest("POST", "/drive/folders/"+f.ID+"/revoke", `{"email":"A@X.com"}`)
	req.PathParameters["folderId"] = f.ID
	resp, _ := h.RevokeAccess(ctx, req)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", resp.StatusCode, resp.Body)
	}
	if len(drive.GrantedEmails(f.ID)) != 0 {
		t.Error("Expected grant to be removed")
	}

	noEmail := makeServiceRequest("POST", "/drive/folders/"+f.ID+"/revoke", `{}`)
	noEmail.PathParameters["folderId"] = f.ID
	resp, _ = h.RevokeAccess(ctx, noEmail)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without email, got %d", resp.StatusCode)
	}
}

func TestDriveHandler_RevokeAccess_ProtectedIdentities(t *testing.T) {
	h, drive := newTestHandler(t)
	ctx := context.Background()

	f, _ := drive.CreateFolder(ctx, "F", adapter.RootAlias)
	drive.GrantAccess(ctx, f.ID, testAdmin, adapter.RoleWriter)

	for _, email := range []string{testAdmin, strings.ToUpper(testService)} {
		req := makeServiceRequest("POST", "/drive/folders/"+f.ID+"/revoke", `{"email":"`+email+`"}`)
		req.PathParameters["folderId"] = f.ID
		resp, _ := h.RevokeAccess(ctx, req)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("Expected 403 revoking %s, got %d: %s", email, resp.StatusCode, resp.Body)
		}
	}
	if drive.GrantedEmails(f.ID)[testAdmin] != adapter.RoleWriter {
		t.Error("Expected the admin grant to remain")
	}
}

func TestDriveHandler_ServiceRoutesRejectSessions(t *testing.T) {
	h, drive := newTestHandler(t)
	ctx := context.Background()
	f, _ := drive.CreateFolder(ctx, "F", adapter.RootAlias)
	drive.GrantAccess(ctx, f.ID, "a@x.com", adapter.RoleWriter)

	calls := map[string]func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error){
		"group":    h.EnsureGroup,
		"task":     h.EnsureTask,
		"thread":   h.EnsureThread,
		"messages": h.CreateMessageFolder,
		"revoke":   h.RevokeAccess,
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			for label, req := range map[string]events.APIGatewayProxyRequest{
				"session":   makeRequest("POST", "/drive/x", `{"participants":["evil@x.com"],"email":"a@x.com","userId":"u1"}`),
				"wrong key": makeServiceRequest("POST", "/drive/x", `{"participants":["evil@x.com"],"email":"a@x.com","userId":"u1"}`),
			} {
				if label == "wrong key" {
					req.Headers[handler.InternalKeyHeader] = "guess"
				} else {
					req.Headers[handler.InternalKeyHeader] = ""
				}
				req.PathParameters = map[string]string{"chatId": "c1", "taskId": "t1", "threadId": "th1", "folderId": f.ID}

				resp, err := call(ctx, req)
				if err != nil {
					t.Fatalf("handler returned error: %v", err)
				}
				want := http.StatusForbidden
				if label == "wrong key" {
					want = http.StatusUnauthorized
				}
				if resp.StatusCode != want {
					t.Errorf("%s: expected %d, got %d", label, want, resp.StatusCode)
				}
			}
		})
	}

	if drive.GrantedEmails(f.ID)["a@x.com"] != adapter.RoleWriter {
		t.Error("Expected the grant to survive rejected revokes")
	}
	if n := len(drive.Children(f.ID)); n != 0 {
		t.Errorf("Expected no message folders, got %d", n)
	}
}

func TestDriveHandler_NoInternalKeyDisablesServiceRoutes(t *testing.T) {
	svc := drivestructure.NewService(memory.NewMemoryDrive(), profile.NewStore(nil, "Users"), drivestructure.Options{})
	h := handler.NewDriveHandler(svc, testJWTSecret, "", nil)

	req := events.APIGatewayProxyRequest{
		Headers:        map[string]string{handler.InternalKeyHeader: ""},
		PathParameters: map[string]string{"chatId": "c1"},
	}
	resp, _ := h.EnsureGroup(context.Background(), req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 with an empty key, got %d", resp.StatusCode)
	}
}
