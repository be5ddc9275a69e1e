package config

const (
	// EnvPrefix namespaces every Verdana environment variable.
	EnvPrefix = "VERDANA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "VERDANA_DB_DSN"
	EnvDBHost = "VERDANA_DB_HOST"
	EnvDBUser = "VERDANA_DB_USER"
	EnvDBName = "VERDANA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
