package graceful

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

func MakeSigintChan() chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}

// Component is a named stop hook for ShutdownAll.
type Component struct {
	Name string
	Stop func(ctx context.Context) error
}

// ShutdownAll stops components in order under a shared deadline. A failing
// component is logged and the rest still get their chance to stop.
func ShutdownAll(timeout time.Duration, logger *logrus.Logger, components ...Component) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, c := range components {
		if c.Stop == nil {
			continue
		}
		if err := c.Stop(ctx); err != nil {
			logger.Errorf("failed to stop %s: %v", c.Name, err)
		}
	}
}
