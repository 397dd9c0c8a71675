package main

import (
	"context"
	"database/sql"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"google.golang.org/api/option"

	"riffrate/internal/config"
	"riffrate/internal/identity"
	"riffrate/internal/logging"
	"riffrate/internal/store"
)

// dependencies holds the backend clients the server is built from.
type dependencies struct {
	docs     store.DocumentStore
	verifier identity.Verifier

	db        *sql.DB
	firestore *firestore.Client
}

func (d *dependencies) Close() {
	if d.db != nil {
		_ = d.db.Close()
	}
	if d.firestore != nil {
		_ = d.firestore.Close()
	}
}

func buildDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*dependencies, error) {
	deps := &dependencies{}

	var app *firebase.App
	if cfg.Store.Backend == config.BackendFirestore || cfg.Auth.Mode == config.AuthFirebase {
		var err error
		app, err = newFirebaseApp(ctx, cfg.Firebase)
		if err != nil {
			return nil, err
		}
	}

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := openDatabase(ctx, cfg.Store.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		deps.db = db
		deps.docs = store.NewPostgres(db)
	case config.BackendFirestore:
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("firestore client: %w", err)
		}
		deps.firestore = client
		deps.docs = store.NewFirestore(client)
	default:
		logger.Warn("using in-memory review store; data is lost on restart")
		deps.docs = store.NewMemory()
	}

	switch cfg.Auth.Mode {
	case config.AuthFirebase:
		client, err := app.Auth(ctx)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("firebase auth client: %w", err)
		}
		deps.verifier = identity.NewFirebaseVerifier(client)
	case config.AuthJWT:
		deps.verifier = identity.NewJWTAuthority(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	default:
		logger.Warn("authentication disabled; every request is anonymous")
	}

	return deps, nil
}

func newFirebaseApp(ctx context.Context, cfg config.FirebaseConfig) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	return app, nil
}
