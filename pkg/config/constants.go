package config

const EnvPrefix = "MYGROS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	TrackingPolicyStrict     = "strict"
	TrackingPolicyPermissive = "permissive"

	BrokerPubSub = "pubsub"
	BrokerKafka  = "kafka"
)

const (
	EnvAppEnv    = "MYGROS_APP_ENV"
	EnvPort      = "MYGROS_APP_PORT"
	EnvLogLevel  = "MYGROS_LOG_LEVEL"
	EnvLogFormat = "MYGROS_LOG_FORMAT"

	EnvDBDSN    = "MYGROS_DB_DSN"
	EnvDBDriver = "MYGROS_DB_DRIVER"
	EnvDBHost   = "MYGROS_DB_HOST"
	EnvDBUser   = "MYGROS_DB_USER"
	EnvDBName   = "MYGROS_DB_NAME"

	EnvRedisURL = "MYGROS_REDIS_URL"

	EnvJWTSecret               = "MYGROS_JWT_SECRET"
	EnvJWTIssuer               = "MYGROS_JWT_ISSUER"
	EnvJWTExpMins              = "MYGROS_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes  = "MYGROS_REFRESH_TOKEN_TTL_MINUTES"
	EnvDeliveryLocalFee        = "MYGROS_DELIVERY_LOCAL_FEE"
	EnvDeliveryNationalFee     = "MYGROS_DELIVERY_NATIONAL_FEE"
	EnvTrackingPolicy          = "MYGROS_TRACKING_POLICY"
	EnvTrackingAdminOverride   = "MYGROS_TRACKING_ADMIN_OVERRIDE"
	EnvEventingBroker          = "MYGROS_EVENTING_BROKER"
	EnvKafkaBrokers            = "MYGROS_KAFKA_BROKERS"
	EnvGCPProjectID            = "MYGROS_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic       = "MYGROS_PUBSUB_ORDERS_TOPIC"
	EnvPubSubAnalyticsTopic    = "MYGROS_PUBSUB_ANALYTICS_TOPIC"
	EnvPubSubAnalyticsSub      = "MYGROS_PUBSUB_ANALYTICS_SUBSCRIPTION"
	EnvPubSubNotificationTopic = "MYGROS_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotificationSub   = "MYGROS_PUBSUB_NOTIFICATION_SUBSCRIPTION"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
