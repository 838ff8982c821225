package mongo

import "errors"

var (
	ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")
	ErrEmptyConnectionURL     = errors.New("empty mongo connection URL, set MONGODB_URL")
	ErrHealthcheckFailed      = errors.New("mongo healthcheck failed")
	ErrFailedToStartSession   = errors.New("failed to start mongo session")
)
