package util

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// CloseResource closes c during shutdown, logging rather than returning any failure.
func CloseResource(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.WithError(err).Warnf("Failed to close %s", name)
	}
}
