// internal/workers/messaging/enqueue-outbound-message/config.go
package enqueueoutboundmessage

import (
	"time"

	"whatsapp-sales-workers/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(wc config.WorkerConfig) *Config {
	timeout := config.GetDuration(wc.Timeout)
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Config{Timeout: timeout}
}
