package http

import (
	"github.com/smartfix-api/internal/application/account"
	"github.com/smartfix-api/internal/application/analytics"
	"github.com/smartfix-api/internal/application/dispute"
	"github.com/smartfix-api/internal/application/job"
	"github.com/smartfix-api/internal/application/notification"
	"github.com/smartfix-api/internal/application/session"
	"github.com/smartfix-api/internal/application/twofactor"
	jwtinfra "github.com/smartfix-api/internal/infrastructure/jwt"
	"github.com/smartfix-api/internal/logger"
	"github.com/smartfix-api/internal/transport/ws"
)

// Deps holds the services and infrastructure the router wires into handlers.
type Deps struct {
	Sessions      session.Service
	TwoFactor     twofactor.Service
	Accounts      account.Service
	Notifications notification.Service
	Jobs          job.Service
	Disputes      dispute.Service
	Analytics     analytics.Service
	Hub           *ws.Hub
	JWTProvider   *jwtinfra.Provider
	Logger        *logger.Logger
}
