package main

import (
	"strings"
	"sync"

	"github.com/anatolykoptev/go-wdtag/internal/config"
)

type commandContext struct {
	configFlag string

	// engineFactory overrides the ONNX engine, for tests.
	engineFactory engineFactory

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}
