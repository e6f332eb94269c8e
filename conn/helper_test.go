package conn

import "github.com/hatlonely/surrealx/log"

func discardLogger() log.Logger {
	return log.Discard()
}
