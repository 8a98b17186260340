package tree

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// Scopes required to read and stream the Realtime Database over REST.
var firebaseScopes = []string{
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/userinfo.email",
}

// FirebaseConfig configures the Firebase-backed store.
type FirebaseConfig struct {
	// DatabaseURL is the Realtime Database base URL.
	DatabaseURL string

	// ServiceAccountJSON is the service-account credential document.
	ServiceAccountJSON []byte

	// HTTPClient is used for the SSE change stream (optional). It must not
	// carry a timeout; the stream is long-lived.
	HTTPClient *http.Client
}

// Firebase implements Store against Firebase Realtime Database, and
// ChangeStream via the database's REST SSE endpoint (the Admin SDK has no
// listener API in Go).
type Firebase struct {
	client      *db.Client
	tokens      oauth2.TokenSource
	databaseURL string
	httpClient  *http.Client
}

// NewFirebase initializes the Firebase app and database client. Credential
// problems surface here, before any traffic is accepted.
func NewFirebase(ctx context.Context, config FirebaseConfig) (*Firebase, error) {
	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("firebase: database URL is required")
	}
	if len(config.ServiceAccountJSON) == 0 {
		return nil, fmt.Errorf("firebase: service account credentials are required")
	}

	app, err := firebase.NewApp(ctx,
		&firebase.Config{DatabaseURL: config.DatabaseURL},
		option.WithCredentialsJSON(config.ServiceAccountJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("firebase: initialize app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: open database: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, config.ServiceAccountJSON, firebaseScopes...)
	if err != nil {
		return nil, fmt.Errorf("firebase: parse credentials: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Firebase{
		client:      client,
		tokens:      creds.TokenSource,
		databaseURL: strings.TrimRight(config.DatabaseURL, "/"),
		httpClient:  httpClient,
	}, nil
}

func (f *Firebase) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := f.client.NewRef(RootPath).Get(ctx, &snap); err != nil {
		return nil, fmt.Errorf("firebase: read tree: %w", err)
	}
	if snap == nil {
		snap = Snapshot{}
	}
	return snap, nil
}

func (f *Firebase) Machine(ctx context.Context, id string) (*MachineRecord, error) {
	var rec MachineRecord
	if err := f.machineRef(id).Get(ctx, &rec); err != nil {
		return nil, fmt.Errorf("firebase: read machine %s: %w", id, err)
	}
	if rec.Empty() {
		return nil, nil
	}
	return &rec, nil
}

func (f *Firebase) PutResponse(ctx context.Context, machine string, response *Response) error {
	if err := f.machineRef(machine).Child("response").Set(ctx, response); err != nil {
		return fmt.Errorf("firebase: write response for %s: %w", machine, err)
	}
	return nil
}

func (f *Firebase) PutStatus(ctx context.Context, machine string, status *Status) error {
	if err := f.machineRef(machine).Child("status").Set(ctx, status); err != nil {
		return fmt.Errorf("firebase: write status for %s: %w", machine, err)
	}
	return nil
}

func (f *Firebase) ClearTransient(ctx context.Context, machine string) error {
	ref := f.machineRef(machine)
	for _, child := range []string{"callback", "response", "status"} {
		if err := ref.Child(child).Delete(ctx); err != nil {
			return fmt.Errorf("firebase: clear %s for %s: %w", child, machine, err)
		}
	}
	return nil
}

// Open starts an SSE change stream on the tree root. The caller owns the
// returned body. Authentication uses the documented access_token query
// parameter: the stream endpoint redirects across hosts, which would drop an
// Authorization header.
func (f *Firebase) Open(ctx context.Context) (io.ReadCloser, error) {
	token, err := f.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("firebase: fetch access token: %w", err)
	}

	streamURL := fmt.Sprintf("%s/%s.json?access_token=%s",
		f.databaseURL, RootPath, url.QueryEscape(token.AccessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("firebase: create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("firebase: open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("firebase: stream returned %d: %s", resp.StatusCode, string(body))
	}
	return resp.Body, nil
}

func (f *Firebase) machineRef(machine string) *db.Ref {
	return f.client.NewRef(RootPath + "/" + machine)
}

// Ensure Firebase implements both sides of the tree.
var (
	_ Store        = (*Firebase)(nil)
	_ ChangeStream = (*Firebase)(nil)
)
