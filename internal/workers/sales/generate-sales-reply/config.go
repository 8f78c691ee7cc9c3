// internal/workers/sales/generate-sales-reply/config.go
package generatesalesreply

import (
	"time"

	"whatsapp-sales-workers/internal/common/config"
)

type Config struct {
	Timeout      time.Duration
	HistoryLimit int
}

func LoadConfig(wc config.WorkerConfig) *Config {
	timeout := config.GetDuration(wc.Timeout)
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Config{
		Timeout:      timeout,
		HistoryLimit: 10,
	}
}
