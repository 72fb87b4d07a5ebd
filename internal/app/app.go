package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/smartlens/drive-backend/internal/adapter"
	"github.com/smartlens/drive-backend/internal/adapter/googledrive"
	"github.com/smartlens/drive-backend/internal/adapter/memory"
	"github.com/smartlens/drive-backend/internal/claim"
	"github.com/smartlens/drive-backend/internal/config"
	"github.com/smartlens/drive-backend/internal/credentials"
	"github.com/smartlens/drive-backend/internal/crypto"
	"github.com/smartlens/drive-backend/internal/drivestructure"
	"github.com/smartlens/drive-backend/internal/handler"
	"github.com/smartlens/drive-backend/internal/index"
	"github.com/smartlens/drive-backend/internal/logging"
	"github.com/smartlens/drive-backend/internal/profile"
	"github.com/smartlens/drive-backend/internal/secret"
)

const (
	devJWTSecret   = "default-dev-secret"
	devInternalKey = "dev-internal-key"
)

// App holds the dependencies for the Lambda function.
type App struct {
	driveHandler     *handler.DriveHandler
	apiGatewaySecret string
	frontendURL      string
	devMode          bool
	log              *slog.Logger
	closers          []io.Closer
}

// NewApp loads configuration and initializes the application dependencies.
// It panics when the service cannot start.
func NewApp(ctx context.Context) *App {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("unable to load config, %v", err))
	}
	app, err := NewWithConfig(ctx, cfg, logging.New(cfg.LogLevel, cfg.LogFormat))
	if err != nil {
		panic(fmt.Sprintf("unable to start, %v", err))
	}
	return app
}

// backends are the storage pieces the drive service is built over.
type backends struct {
	drive        adapter.DriveAPI
	serviceEmail string
	profiles     drivestructure.ProfileStore
	claims       claim.Store
	index        index.Index
	resolver     secret.Resolver
}

// NewWithConfig wires the application from cfg. DEV_MODE keeps every backend in memory.
func NewWithConfig(ctx context.Context, cfg *config.Config, logs *logging.Logger) (*App, error) {
	log := logs.GetLogger("app")
	app := &App{
		frontendURL: cfg.FrontendURL,
		devMode:     cfg.DevMode,
		log:         log,
	}

	var (
		b   *backends
		err error
	)
	if cfg.DevMode {
		b, err = devBackends(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
	} else {
		b, err = app.awsBackends(ctx, cfg, logs)
		if err != nil {
			return nil, err
		}
	}

	jwtSecret, err := b.resolver.GetSecret(ctx, cfg.JWTSecretParam)
	if err != nil {
		if !cfg.DevMode {
			return nil, fmt.Errorf("resolve jwt secret: %w", err)
		}
		log.Warn("jwt secret not set, using development default", "error", err)
		jwtSecret = devJWTSecret
	}
	app.apiGatewaySecret, err = b.resolver.GetSecret(ctx, cfg.APIGatewaySecretParam)
	if err != nil && !cfg.DevMode {
		return nil, fmt.Errorf("resolve api gateway secret: %w", err)
	}
	internalKey, err := b.resolver.GetSecret(ctx, cfg.InternalAPIKeyParam)
	if err != nil {
		if !cfg.DevMode {
			return nil, fmt.Errorf("resolve internal api key: %w", err)
		}
		log.Warn("internal api key not set, using development default", "error", err)
		internalKey = devInternalKey
	}

	svc := drivestructure.NewService(b.drive, b.profiles, drivestructure.Options{
		RootFolderID:      cfg.RootFolderID,
		RootName:          cfg.RootFolderName,
		AdminEmail:        cfg.AdminEmail,
		ServiceEmail:      b.serviceEmail,
		Policy:            drivestructure.AccessPolicy(cfg.AccessPolicy),
		RequireAdminGrant: cfg.RequireAdminGrant,
		GrantConcurrency:  cfg.GrantConcurrency,
		Index:             b.index,
		Claims:            b.claims,
		ClaimPoll:         cfg.ClaimPoll,
		Logger:            logs.GetLogger("drivestructure"),
	})
	app.driveHandler = handler.NewDriveHandler(svc, jwtSecret, internalKey, logs.GetLogger("handler"))
	return app, nil
}

// devBackends keeps storage in memory. When the service key is present in the
// environment the real Drive is used; SERVICE_KEY_KMS_ENCRYPTED then expects
// a key sealed by the mock encryptor instead of KMS.
func devBackends(ctx context.Context, cfg *config.Config, log *slog.Logger) (*backends, error) {
	b := &backends{
		drive:    memory.NewMemoryDrive(),
		profiles: profile.NewStore(nil, cfg.UsersTable),
		claims:   claim.NewMemoryStore(cfg.ClaimTTL),
		index:    index.NewMemoryIndex(cfg.IndexTTL),
		resolver: secret.NewEnvResolver(),
	}
	if _, err := b.resolver.GetSecret(ctx, cfg.ServiceKeyParam); err != nil {
		log.Info("using in-memory drive", "dev_mode", true)
		return b, nil
	}

	var sealed crypto.Encryptor
	if cfg.ServiceKeyKMSEncrypted {
		sealed = crypto.NewMockEncryptor()
	}
	identity, err := credentials.Load(ctx, b.resolver, cfg.ServiceKeyParam, sealed)
	if err != nil {
		return nil, err
	}
	drive, err := googledrive.NewDriveAdapter(ctx, identity.Client, retryPolicy(cfg))
	if err != nil {
		return nil, err
	}
	b.drive = drive
	b.serviceEmail = identity.Email
	log.Info("using google drive", "dev_mode", true, "service_email", identity.Email, "sealed", sealed != nil)
	return b, nil
}

func retryPolicy(cfg *config.Config) googledrive.RetryPolicy {
	return googledrive.RetryPolicy{
		Attempts:   cfg.RetryAttempts,
		Initial:    cfg.RetryInitial,
		Multiplier: googledrive.DefaultRetryPolicy.Multiplier,
		Max:        cfg.RetryMax,
	}
}

func (app *App) awsBackends(ctx context.Context, cfg *config.Config, logs *logging.Logger) (*backends, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	// Environment overrides SSM so a single parameter can be pinned per deploy.
	resolver := secret.NewCachedResolver(secret.ChainResolver{
		secret.NewEnvResolver(),
		secret.NewSSMResolver(ssm.NewFromConfig(awsCfg)),
	})

	var sealed crypto.Encryptor
	if cfg.ServiceKeyKMSEncrypted {
		sealed = crypto.NewKMSService(kms.NewFromConfig(awsCfg), cfg.KMSKeyID)
	}
	identity, err := credentials.Load(ctx, resolver, cfg.ServiceKeyParam, sealed)
	if err != nil {
		return nil, err
	}

	drive, err := googledrive.NewDriveAdapter(ctx, identity.Client, retryPolicy(cfg))
	if err != nil {
		return nil, err
	}

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	b := &backends{
		drive:        drive,
		serviceEmail: identity.Email,
		profiles:     profile.NewStore(dynamoClient, cfg.UsersTable),
		claims:       claim.NewDynamoStore(dynamoClient, cfg.ClaimsTable, cfg.ClaimTTL),
		resolver:     resolver,
	}

	if cfg.RedisURL != "" {
		idx, err := index.NewRedisIndex(ctx, cfg.RedisURL, cfg.IndexTTL)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, idx)
		b.index = idx
	} else {
		b.index = index.NewMemoryIndex(cfg.IndexTTL)
	}

	app.log.Info("using google drive", "service_email", identity.Email, "redis", cfg.RedisURL != "")
	return b, nil
}

// Close releases connections held by the app.
func (app *App) Close() error {
	var first error
	for _, c := range app.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// HandleRequest routes API Gateway requests to the appropriate handler.
func (app *App) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := req.Path
	method := req.HTTPMethod

	app.log.Debug("request", "method", method, "path", path)

	// CORS Preflight
	if method == "OPTIONS" {
		return app.corsResponse(events.APIGatewayProxyResponse{StatusCode: 204}), nil
	}

	// Security: Verify Request Origin (CloudFront only)
	if !app.devMode {
		if req.Headers["X-Origin-Verify"] != app.apiGatewaySecret && req.Headers["x-origin-verify"] != app.apiGatewaySecret {
			app.log.Warn("security block: missing or invalid X-Origin-Verify header", "path", path)
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusForbidden,
				Body:       "Forbidden: Access denied",
			}, nil
		}
	}

	// Strip /api prefix if present (for CloudFront proxying)
	path = strings.TrimPrefix(path, "/api")

	if req.PathParameters == nil {
		req.PathParameters = make(map[string]string)
	}

	if path == "/health" && method == "GET" {
		return app.corsResponse(events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Body: "ok"}), nil
	}

	// /drive
	if strings.HasPrefix(path, "/drive/") && method == "POST" {
		h := app.driveHandler
		parts := strings.Split(strings.Trim(strings.TrimPrefix(path, "/drive/"), "/"), "/")

		switch {
		case len(parts) == 1 && parts[0] == "system":
			return app.corsResponse(app.must(h.EnsureSystem(ctx, req))), nil
		case len(parts) == 1 && parts[0] == "me":
			return app.corsResponse(app.must(h.EnsureMe(ctx, req))), nil
		case len(parts) == 1 && parts[0] == "dms":
			return app.corsResponse(app.must(h.EnsureDM(ctx, req))), nil
		case len(parts) == 2 && parts[0] == "groups":
			req.PathParameters["chatId"] = parts[1]
			return app.corsResponse(app.must(h.EnsureGroup(ctx, req))), nil
		case len(parts) == 2 && parts[0] == "tasks":
			req.PathParameters["taskId"] = parts[1]
			return app.corsResponse(app.must(h.EnsureTask(ctx, req))), nil
		case len(parts) == 2 && parts[0] == "threads":
			req.PathParameters["threadId"] = parts[1]
			return app.corsResponse(app.must(h.EnsureThread(ctx, req))), nil
		case len(parts) == 3 && parts[0] == "folders" && parts[2] == "messages":
			req.PathParameters["folderId"] = parts[1]
			return app.corsResponse(app.must(h.CreateMessageFolder(ctx, req))), nil
		case len(parts) == 3 && parts[0] == "folders" && parts[2] == "revoke":
			req.PathParameters["folderId"] = parts[1]
			return app.corsResponse(app.must(h.RevokeAccess(ctx, req))), nil
		}
	}

	return app.corsResponse(events.APIGatewayProxyResponse{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf("Not Found: %s %s", method, path),
	}), nil
}

// corsResponse adds CORS headers to an API Gateway response.
func (app *App) corsResponse(resp events.APIGatewayProxyResponse) events.APIGatewayProxyResponse {
	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	resp.Headers["Access-Control-Allow-Origin"] = app.frontendURL
	resp.Headers["Access-Control-Allow-Credentials"] = "true"
	resp.Headers["Access-Control-Allow-Methods"] = "GET,POST,OPTIONS"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type,Authorization"
	return resp
}

// must unwraps a handler response, logging the error.
func (app *App) must(resp events.APIGatewayProxyResponse, err error) events.APIGatewayProxyResponse {
	if err != nil {
		app.log.Error("handler error", "error", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Internal Server Error"}
	}
	return resp
}
