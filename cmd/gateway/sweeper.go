package main

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-academy/internal/auth"
	"github.com/mind-engage/mindengage-academy/internal/exam"
)

const limiterIdle = 15 * time.Minute

// startSweeper evicts idle exam sessions and stale login-limiter entries
// on spec (a cron expression or "@every 1m").
func startSweeper(spec string, sessions *exam.Manager, login *auth.Service, log *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n := sessions.Sweep()
		dropped := 0
		if login != nil {
			dropped = login.Limiter().Sweep(limiterIdle)
		}
		log.Debug("sweep", zap.Int("sessions", n), zap.Int("limiter_keys", dropped), zap.Int("live", sessions.Len()))
	})
	if err != nil {
		return nil, fmt.Errorf("session sweep spec %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
