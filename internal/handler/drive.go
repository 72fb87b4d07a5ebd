package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/smartlens/drive-backend/internal/adapter"
	"github.com/smartlens/drive-backend/internal/drivestructure"
	"github.com/smartlens/drive-backend/internal/logging"
	"github.com/smartlens/drive-backend/internal/model"
)

// Provisioner is the provisioning surface the HTTP layer drives.
type Provisioner interface {
	EnsureSystemStructure(ctx context.Context) (*drivestructure.SystemStructure, error)
	EnsureUserDriveStructure(ctx context.Context, userID, email, displayName string) (*drivestructure.UserStructure, error)
	EnsureGroupDriveStructure(ctx context.Context, chatID, name string, emails []string) (*drivestructure.EntityFolder, error)
	EnsureDMDriveStructure(ctx context.Context, uidA, uidB string, emails []string) (*drivestructure.EntityFolder, error)
	EnsureTaskDriveStructure(ctx context.Context, taskID, title string, emails []string) (*drivestructure.EntityFolder, error)
	EnsureThreadDriveStructure(ctx context.Context, threadID, title string, emails []string) (*drivestructure.EntityFolder, error)
	CreateMessageFolder(ctx context.Context, parentID, userID string) (*adapter.Folder, error)
	RevokeAccess(ctx context.Context, folderID, email string) error
}

// InternalKeyHeader carries the key backend services authenticate with.
const InternalKeyHeader = "X-Internal-Key"

// DriveHandler serves the /drive routes.
// Routes that name participants or act on arbitrary folders accept only
// backend callers presenting the internal key; user sessions reach the
// system, me and dm routes.
type DriveHandler struct {
	svc         Provisioner
	jwtSecret   string
	internalKey string
	log         *slog.Logger
}

// NewDriveHandler creates a new DriveHandler. An empty internalKey disables
// the service-only routes.
func NewDriveHandler(svc Provisioner, jwtSecret, internalKey string, log *slog.Logger) *DriveHandler {
	if log == nil {
		log = logging.Discard()
	}
	return &DriveHandler{svc: svc, jwtSecret: jwtSecret, internalKey: internalKey, log: log}
}

// isServiceCall reports whether req carries the internal key.
func (h *DriveHandler) isServiceCall(req events.APIGatewayProxyRequest) bool {
	if h.internalKey == "" {
		return false
	}
	got := getHeader(req, InternalKeyHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.internalKey)) == 1
}

// requireService admits backend callers only. A valid user session gets 403, anything else 401.
func (h *DriveHandler) requireService(req events.APIGatewayProxyRequest, route string) (events.APIGatewayProxyResponse, bool) {
	if h.isServiceCall(req) {
		return events.APIGatewayProxyResponse{}, true
	}
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return textResponse(http.StatusUnauthorized, "Unauthorized"), false
	}
	h.log.Warn("service route called with a user session", "route", route, "user", userID)
	return textResponse(http.StatusForbidden, "Forbidden"), false
}

type failedGrant struct {
	Op     string `json:"op"`
	Email  string `json:"email,omitempty"`
	Reason string `json:"reason"`
}

type folderResponse struct {
	FolderID     string        `json:"folderId"`
	Name         string        `json:"name,omitempty"`
	ParentID     string        `json:"parentId,omitempty"`
	ViewURL      string        `json:"viewUrl,omitempty"`
	FailedGrants []failedGrant `json:"failedGrants"`
}

type systemResponse struct {
	model.SystemFolders
	FailedGrants []failedGrant `json:"failedGrants"`
}

type userResponse struct {
	RootFolderID        string        `json:"rootFolderId"`
	PrivateFolderID     string        `json:"privateFolderId"`
	ContentRootFolderID string        `json:"contentRootFolderId"`
	FailedGrants        []failedGrant `json:"failedGrants"`
}

type entityRequest struct {
	Name         string   `json:"name"`
	Title        string   `json:"title"`
	Participants []string `json:"participants"`
}

type dmRequest struct {
	UserIDs      []string `json:"userIds"`
	Participants []string `json:"participants"`
}

type meRequest struct {
	DisplayName string `json:"displayName"`
}

type messageRequest struct {
	UserID string `json:"userId"`
}

type revokeRequest struct {
	Email string `json:"email"`
}

func toFailedGrants(p drivestructure.PartialFailure) []failedGrant {
	out := make([]failedGrant, 0, len(p))
	for _, w := range p {
		reason := ""
		if w.Err != nil {
			reason = w.Err.Error()
		}
		out = append(out, failedGrant{Op: w.Op, Email: w.Email, Reason: reason})
	}
	return out
}

func entityResponse(f *drivestructure.EntityFolder) events.APIGatewayProxyResponse {
	return jsonResponse(http.StatusOK, folderResponse{
		FolderID:     f.ID,
		Name:         f.Name,
		ParentID:     f.ParentID,
		FailedGrants: toFailedGrants(f.Failures),
	})
}

// errorResponse maps a provisioning failure to a status code.
func (h *DriveHandler) errorResponse(op string, err error) events.APIGatewayProxyResponse {
	if errors.Is(err, drivestructure.ErrMissingID) || errors.Is(err, drivestructure.ErrEmptyName) {
		return textResponse(http.StatusBadRequest, err.Error())
	}
	if errors.Is(err, adapter.ErrNotFound) {
		return textResponse(http.StatusNotFound, "Folder not found")
	}
	if errors.Is(err, drivestructure.ErrProtectedIdentity) {
		return textResponse(http.StatusForbidden, "Identity cannot be revoked")
	}
	var perr *drivestructure.ProvisioningError
	if errors.As(err, &perr) {
		h.log.Error("provisioning failed", "route", op, "op", perr.Op, "name", perr.Name, "parent", perr.Parent, "error", perr.Err)
	} else {
		h.log.Error("request failed", "route", op, "error", err)
	}
	return textResponse(http.StatusInternalServerError, "Drive provisioning failed")
}

func decodeBody(req events.APIGatewayProxyRequest, v any) error {
	if strings.TrimSpace(req.Body) == "" {
		return nil
	}
	return json.Unmarshal([]byte(req.Body), v)
}

// EnsureSystem handles POST /drive/system.
func (h *DriveHandler) EnsureSystem(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if !h.isServiceCall(req) {
		if _, err := GetUserID(req, h.jwtSecret); err != nil {
			return textResponse(http.StatusUnauthorized, "Unauthorized"), nil
		}
	}

	sys, err := h.svc.EnsureSystemStructure(ctx)
	if err != nil {
		return h.errorResponse("system", err), nil
	}
	return jsonResponse(http.StatusOK, systemResponse{
		SystemFolders: sys.SystemFolders,
		FailedGrants:  toFailedGrants(sys.Failures),
	}), nil
}

// EnsureMe handles POST /drive/me for the calling user.
func (h *DriveHandler) EnsureMe(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	claims, err := GetUserClaims(req, h.jwtSecret)
	if err != nil {
		return textResponse(http.StatusUnauthorized, "Unauthorized"), nil
	}

	var body meRequest
	if err := decodeBody(req, &body); err != nil {
		return textResponse(http.StatusBadRequest, "Invalid request body"), nil
	}
	name := claims.Name
	if body.DisplayName != "" {
		name = body.DisplayName
	}

	res, err := h.svc.EnsureUserDriveStructure(ctx, claims.UserID, claims.Email, name)
	if err != nil {
		return h.errorResponse("me", err), nil
	}
	return jsonResponse(http.StatusOK, userResponse{
		RootFolderID:        res.Record.RootFolderID,
		PrivateFolderID:     res.Record.PrivateFolderID,
		ContentRootFolderID: res.Record.ContentRootFolderID,
		FailedGrants:        toFailedGrants(res.Failures),
	}), nil
}

// EnsureGroup handles POST /drive/groups/{chatId}. Service callers only.
func (h *DriveHandler) EnsureGroup(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if resp, ok := h.requireService(req, "group"); !ok {
		return resp, nil
	}
	chatID := req.PathParameters["chatId"]
	if chatID == "" {
		return textResponse(http.StatusBadRequest, "Missing chat ID"), nil
	}
	var body entityRequest
	if err := decodeBody(req, &body); err != nil {
		return textResponse(http.StatusBadRequest, "Invalid request body"), nil
	}

	res, err := h.svc.EnsureGroupDriveStructure(ctx, chatID, body.Name, body.Participants)
	if err != nil {
		return h.errorResponse("group", err), nil
	}
	return entityResponse(res), nil
}

// EnsureDM handles POST /drive/dms. Service callers share with the listed
// participants. A user session must be one of the two users and only ever
// shares the folder with its own email.
func (h *DriveHandler) EnsureDM(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	service := h.isServiceCall(req)
	var claims *UserClaims
	if !service {
		var err error
		if claims, err = GetUserClaims(req, h.jwtSecret); err != nil {
			return textResponse(http.StatusUnauthorized, "Unauthorized"), nil
		}
	}
	var body dmRequest
	if err := decodeBody(req, &body); err != nil {
		return textResponse(http.StatusBadRequest, "Invalid request body"), nil
	}
	if len(body.UserIDs) != 2 || body.UserIDs[0] == "" || body.UserIDs[1] == "" {
		return textResponse(http.StatusBadRequest, "userIds must name exactly two users"), nil
	}

	emails := body.Participants
	if !service {
		if claims.UserID != body.UserIDs[0] && claims.UserID != body.UserIDs[1] {
			return textResponse(http.StatusForbidden, "Forbidden"), nil
		}
		emails = nil
		if claims.Email != "" {
			emails = []string{claims.Email}
		}
	}

	res, err := h.svc.EnsureDMDriveStructure(ctx, body.UserIDs[0], body.UserIDs[1], emails)
	if err != nil {
		return h.errorResponse("dm", err), nil
	}
	return entityResponse(res), nil
}

// EnsureTask handles POST /drive/tasks/{taskId}. Service callers only.
func (h *DriveHandler) EnsureTask(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if resp, ok := h.requireService(req, "task"); !ok {
		return resp, nil
	}
	taskID := req.PathParameters["taskId"]
	if taskID == "" {
		return textResponse(http.StatusBadRequest, "Missing task ID"), nil
	}
	var body entityRequest
	if err := decodeBody(req, &body); err != nil {
		return textResponse(http.StatusBadRequest, "Invalid request body"), nil
	}

	res, err := h.svc.EnsureTaskDriveStructure(ctx, taskID, body.Title, body.Participants)
	if err != nil {
		return h.errorResponse("task", err), nil
	}
	return entityResponse(res), nil
}

// EnsureThread handles POST /drive/threads/{threadId}. Service callers only.
func (h *DriveHandler) EnsureThread(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if resp, ok := h.requireService(req, "thread"); !ok {
		return resp, nil
	}
	threadID := req.PathParameters["threadId"]
	if threadID == "" {
		return textResponse(http.StatusBadRequest, "Missing thread ID"), nil
	}
	var body entityRequest
	if err := decodeBody(req, &body); err != nil {
		return textResponse(http.StatusBadRequest, "Invalid request body"), nil
	}

	res, err := h.svc.EnsureThreadDriveStructure(ctx, threadID, body.Title, body.Participants)
	if err != nil {
		return h.errorResponse("thread", err), nil
	}
	return entityResponse(res), nil
}

// CreateMessageFolder handles POST /drive/folders/{folderId}/messages for the
// sender named in the body. Service callers only.
func (h *DriveHandler) CreateMessageFolder(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if resp, ok := h.requireService(req, "messages"); !ok {
		return resp, nil
	}
	folderID := req.PathParameters["folderId"]
	if folderID == "" {
		return textResponse(http.StatusBadRequest, "Missing folder ID"), nil
	}
	var body messageRequest
	if err := decodeBody(req, &body); err != nil {
		return textResponse(http.StatusBadRequest, "Invalid request body"), nil
	}
	if strings.TrimSpace(body.UserID) == "" {
		return textResponse(http.StatusBadRequest, "Missing user ID"), nil
	}

	f, err := h.svc.CreateMessageFolder(ctx, folderID, body.UserID)
	if err != nil {
		return h.errorResponse("messages", err), nil
	}
	return jsonResponse(http.StatusCreated, folderResponse{
		FolderID:     f.ID,
		Name:         f.Name,
		ParentID:     f.ParentID,
		ViewURL:      f.ViewURL,
		FailedGrants: []failedGrant{},
	}), nil
}

// RevokeAccess handles POST /drive/folders/{folderId}/revoke. Service callers only;
// the service and admin identities cannot be revoked.
func (h *DriveHandler) RevokeAccess(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if resp, ok := h.requireService(req, "revoke"); !ok {
		return resp, nil
	}
	folderID := req.PathParameters["folderId"]
	if folderID == "" {
		return textResponse(http.StatusBadRequest, "Missing folder ID"), nil
	}
	var body revokeRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil || strings.TrimSpace(body.Email) == "" {
		return textResponse(http.StatusBadRequest, "Missing email"), nil
	}

	if err := h.svc.RevokeAccess(ctx, folderID, body.Email); err != nil {
		return h.errorResponse("revoke", err), nil
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}, nil
}
