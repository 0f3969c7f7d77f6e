package database

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	connectAttempts = 5
	connectBackoff  = time.Second
)

// connectWithRetry calls ping until it succeeds, backing off linearly. Backing
// services often start alongside the API and need a few seconds.
func connectWithRetry(name string, ping func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = ping(ctx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt < connectAttempts {
			log.Warn().Err(err).Str("service", name).Int("attempt", attempt).Msg("Connection failed, retrying")
			time.Sleep(connectBackoff * time.Duration(attempt))
		}
	}
	return err
}
