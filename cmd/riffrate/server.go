package main

import (
	"net/http"

	"riffrate/internal/config"
	"riffrate/internal/http/middleware"
	"riffrate/internal/httpapi"
	"riffrate/internal/identity"
	"riffrate/internal/logging"
	"riffrate/internal/metrics"
	"riffrate/internal/reviews"
)

func newRepository(cfg *config.Config, deps *dependencies, logger *logging.Logger) *reviews.Repository {
	return reviews.New(deps.docs, identity.RequestProvider{},
		reviews.WithCollection(cfg.Store.Collection),
		reviews.WithLogger(logger.Component("reviews")),
	)
}

func newHTTPHandler(cfg *config.Config, repo *reviews.Repository, verifier identity.Verifier, logger *logging.Logger) http.Handler {
	api := httpapi.New(repo,
		httpapi.WithLogger(logger.Component("httpapi")),
		httpapi.WithBrowseLimits(cfg.Browse.Window, cfg.Browse.PageSize),
	)

	return middleware.Chain(api.Routes(),
		middleware.RequestID(),
		middleware.Recovery(logger),
		metrics.InstrumentHandler,
		middleware.CORS(cfg.CORS.AllowedOrigins),
		middleware.Authenticate(verifier),
		middleware.RequestLogging(logger),
	)
}
