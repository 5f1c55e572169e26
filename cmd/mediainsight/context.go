package main

import (
	"context"
	"strings"
	"sync"

	"media-insights-go/internal/app"
	"media-insights-go/internal/config"
)

// commandContext loads configuration once per invocation and builds the
// pipeline only for commands that need it.
type commandContext struct {
	envFlag *string

	configOnce sync.Once
	config     config.Config

	// build is replaced in tests.
	build func(ctx context.Context, cfg config.Config) (*app.App, error)
}

func newCommandContext(envFlag *string) *commandContext {
	return &commandContext{envFlag: envFlag, build: app.Build}
}

func (c *commandContext) ensureConfig() config.Config {
	c.configOnce.Do(func() {
		var files []string
		if c.envFlag != nil {
			if p := strings.TrimSpace(*c.envFlag); p != "" {
				files = append(files, p)
			}
		}
		c.config = config.Load(files...)
	})
	return c.config
}

func (c *commandContext) withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := c.build(ctx, c.ensureConfig())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
