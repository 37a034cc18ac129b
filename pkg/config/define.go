/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package config

const (
	serverPort        = "server.port"
	corsOrigins       = "server.corsOrigins"
	userTokenExpire   = "server.userTokenExpireSecond"
	userTokenRequired = "server.userTokenRequired"

	dbHost                 = "db.host"
	dbPort                 = "db.port"
	dbName                 = "db.dbname"
	dbUser                 = "db.user"
	dbPassword             = "db.password"
	dbSslMode              = "db.sslMode"
	dbSecretPath           = "db.secretPath"
	dbMaxOpenConns         = "db.maxOpenConns"
	dbMaxIdleConns         = "db.maxIdleConns"
	dbMaxLifetime          = "db.maxLifetimeSecond"
	dbMaxIdleTimeSecond    = "db.maxIdleTimeSecond"
	dbRequestTimeoutSecond = "db.requestTimeoutSecond"

	servicesDir = "services.dir"

	runnerStopGraceSecond = "runner.stopGraceSecond"
	runnerFlushSecond     = "runner.outputFlushSecond"

	schedulerTickSecond = "scheduler.tickSecond"

	costRefreshHour       = "pollers.costRefreshHour"
	healthIntervalSecond  = "pollers.healthIntervalSecond"
	driftIntervalSecond   = "pollers.driftIntervalSecond"
	snapshotPollSecond    = "pollers.snapshotPollSecond"
	healthTargets         = "pollers.healthTargets"
	healthTimeoutSecond   = "pollers.healthTimeoutSecond"
	providerApiKey        = "provider.apiKey"
	providerEndpoint      = "provider.endpoint"
	providerTimeoutSecond = "provider.timeoutSecond"

	mailBackend     = "mail.backend"
	smtpHost        = "mail.smtp.host"
	smtpPort        = "mail.smtp.port"
	smtpUser        = "mail.smtp.user"
	smtpPassword    = "mail.smtp.password"
	smtpSender      = "mail.smtp.sender"
	smtpStartTLS    = "mail.smtp.startTLS"
	mailApiEndpoint = "mail.api.endpoint"
	mailApiKey      = "mail.api.key"
	mailApiSender   = "mail.api.sender"
)

// environment variables applied as overrides at startup, see ApplyEnvOverrides
const (
	envCorsOrigins    = "CLOUDLAB_CORS_ORIGINS"
	envSmtpHost       = "CLOUDLAB_SMTP_HOST"
	envSmtpPort       = "CLOUDLAB_SMTP_PORT"
	envSmtpUser       = "CLOUDLAB_SMTP_USER"
	envSmtpPassword   = "CLOUDLAB_SMTP_PASSWORD"
	envSmtpSender     = "CLOUDLAB_SMTP_SENDER"
	envMailApiKey     = "CLOUDLAB_MAIL_API_KEY"
	envMailApiSender  = "CLOUDLAB_MAIL_API_SENDER"
	envProviderApiKey = "CLOUDLAB_PROVIDER_API_KEY"
)
