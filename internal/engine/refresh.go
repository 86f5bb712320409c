package engine

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Refresh asks every data source to update once, in order. Failures are
// logged and do not stop the remaining sources; the joined errors are
// returned for callers that want to report them.
func (e *Engine) Refresh(ctx context.Context) error {
	var errs []error
	for _, src := range e.sources.Sources() {
		log := e.log.WithField("source", src.Name())
		log.Debug("updating data source")
		if err := src.Update(ctx); err != nil {
			log.Warnf("Unable to update %s, using local data instead", src.Name())
			log.WithFields(logrus.Fields{"error": err.Error()}).Debug("data source update failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
