package config

// EnvPrefix is handed to envconfig; every field also carries its full variable name.
const EnvPrefix = "CLUBLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	TransportPubSub = "pubsub"
	TransportKafka  = "kafka"
	TransportNone   = "none"
)

const (
	EnvAppEnv         = "CLUBLEDGER_APP_ENV"
	EnvPort           = "CLUBLEDGER_APP_PORT"
	EnvDBDSN          = "CLUBLEDGER_DB_DSN"
	EnvDBHost         = "CLUBLEDGER_DB_HOST"
	EnvDBUser         = "CLUBLEDGER_DB_USER"
	EnvDBName         = "CLUBLEDGER_DB_NAME"
	EnvRedisURL       = "CLUBLEDGER_REDIS_URL"
	EnvJWTSecret      = "CLUBLEDGER_JWT_SECRET"
	EnvJWTIssuer      = "CLUBLEDGER_JWT_ISSUER"
	EnvGCPProjectID   = "CLUBLEDGER_GCP_PROJECT_ID"
	EnvEventTransport = "CLUBLEDGER_EVENTING_TRANSPORT"
	EnvKafkaBrokers   = "CLUBLEDGER_KAFKA_BROKERS"
	EnvAllowOverdraft = "CLUBLEDGER_LEDGER_ALLOW_OVERDRAFT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
