package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/smartfix-api/internal/application/account"
	"github.com/smartfix-api/internal/application/analytics"
	"github.com/smartfix-api/internal/application/dispute"
	"github.com/smartfix-api/internal/application/job"
	"github.com/smartfix-api/internal/application/notification"
	"github.com/smartfix-api/internal/application/session"
	"github.com/smartfix-api/internal/application/sweeper"
	"github.com/smartfix-api/internal/application/twofactor"
	"github.com/smartfix-api/internal/config"
	"github.com/smartfix-api/internal/domain"
	"github.com/smartfix-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/smartfix-api/internal/infrastructure/jwt"
	s3infra "github.com/smartfix-api/internal/infrastructure/s3"
	"github.com/smartfix-api/internal/infrastructure/smtp"
	"github.com/smartfix-api/internal/infrastructure/sns"
	"github.com/smartfix-api/internal/infrastructure/totp"
	"github.com/smartfix-api/internal/logger"
	transporthttp "github.com/smartfix-api/internal/transport/http"
	"github.com/smartfix-api/internal/transport/ws"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("api", cfg.AppEnv)
	if envErr != nil {
		log.Info().Msg("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg, cfg.AWSRegion)
	if err != nil {
		log.Fatal().Err(err).Msg("aws config")
	}

	// Create DynamoDB tables that do not exist yet.
	dynamoClient := dynamo.NewClient(awsCfg, cfg)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables, log)

	accountRepo := dynamo.NewAccountRepo(dynamoClient, cfg.DynamoTables.Accounts, cfg.DynamoTables.AccountEmails, cfg.Security.WriteRetries)
	sessionRepo := dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions)
	notificationRepo := dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications)
	jobRepo := dynamo.NewJobRepo(dynamoClient, cfg.DynamoTables.Jobs, cfg.Security.WriteRetries)
	disputeRepo := dynamo.NewDisputeRepo(dynamoClient, cfg.DynamoTables.Disputes, cfg.Security.WriteRetries)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("jwt provider")
	}

	s3Store := s3infra.NewStore(s3infra.NewClient(awsCfg, cfg), cfg.S3BucketName)
	mailer := smtp.NewMailer(cfg.SMTP)

	hub := ws.NewHub(log.With("component", "ws"), cfg.AllowedOrigins)
	broadcasters := []notification.Broadcaster{hub}
	var smsSender notification.SMSSender
	if cfg.SNSTopicARN != "" {
		publisher := sns.NewPublisher(sns.NewClient(awsCfg, cfg.SNSRegion, cfg.AWSEndpointURL), cfg.SNSTopicARN)
		broadcasters = append(broadcasters, publisher)
		smsSender = publisher
	} else {
		log.Warn().Msg("SNS_TOPIC_ARN not set, SNS mirror and SMS disabled")
	}

	sessionSvc := session.NewService(session.ServiceDeps{
		AccountRepo: accountRepo,
		SessionRepo: sessionRepo,
		JWTProvider: jwtProvider,
		Mailer:      mailer,
		Policy: domain.LockoutPolicy{
			MaxAttempts:  cfg.Security.MaxFailedAttempts,
			LockDuration: cfg.Security.LockDuration,
		},
		Logger: log.With("component", "session"),
	})
	twoFactorSvc := twofactor.NewService(twofactor.ServiceDeps{
		AccountRepo:   accountRepo,
		SessionRepo:   sessionRepo,
		Authenticator: totp.NewAuthenticator(cfg.Security.TOTPIssuer),
		Logger:        log.With("component", "2fa"),
	})
	accountSvc := account.NewService(account.ServiceDeps{
		AccountRepo: accountRepo,
		SessionRepo: sessionRepo,
		FileStore:   s3Store,
		Logger:      log.With("component", "account"),
	})
	notificationSvc := notification.NewService(notification.ServiceDeps{
		NotificationRepo: notificationRepo,
		AccountRepo:      accountRepo,
		Dispatcher:       notification.NewDispatcher(log.With("component", "dispatch"), accountRepo, smsSender, broadcasters...),
		Logger:           log.With("component", "notification"),
	})
	jobSvc := job.NewService(job.ServiceDeps{
		JobRepo:     jobRepo,
		AccountRepo: accountRepo,
		Notifier:    notificationSvc,
		Logger:      log.With("component", "job"),
	})
	disputeSvc := dispute.NewService(dispute.ServiceDeps{
		DisputeRepo: disputeRepo,
		JobRepo:     jobRepo,
		AccountRepo: accountRepo,
		Notifier:    notificationSvc,
		Logger:      log.With("component", "dispute"),
	})
	analyticsSvc := analytics.NewService(analytics.ServiceDeps{
		AccountRepo:      accountRepo,
		JobRepo:          jobRepo,
		DisputeRepo:      disputeRepo,
		NotificationRepo: notificationRepo,
		Logger:           log.With("component", "analytics"),
	})

	if b := cfg.Bootstrap; b.Email != "" && b.Password != "" {
		if _, err := accountSvc.EnsureAdmin(ctx, b.Email, b.Password, b.DisplayName); err != nil {
			log.Error().Err(err).Str("email", b.Email).Msg("bootstrap admin")
		}
	}

	go sweeper.Run(ctx, notificationSvc, cfg.SweepInterval, log.With("component", "sweeper"))

	router := transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{
		Sessions:      sessionSvc,
		TwoFactor:     twoFactorSvc,
		Accounts:      accountSvc,
		Notifications: notificationSvc,
		Jobs:          jobSvc,
		Disputes:      disputeSvc,
		Analytics:     analyticsSvc,
		Hub:           hub,
		JWTProvider:   jwtProvider,
		Logger:        log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.AppPort).Str("env", cfg.AppEnv).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
