package debug

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/devops"
	"go.uber.org/zap"

	"github.com/dyike/FinCortex/config"
	"github.com/dyike/FinCortex/internal/logger"
)

// DevServerPort is the port the eino devops server listens on.
const DevServerPort = 52538

// EinoDebugger starts the eino visual debug server so compiled graphs can be
// inspected and replayed from the Eino Dev tooling.
type EinoDebugger struct {
	config *config.Config
	logger *zap.Logger
}

func NewEinoDebugger(cfg *config.Config, log *zap.Logger) *EinoDebugger {
	return &EinoDebugger{
		config: cfg,
		logger: logger.OrNop(log),
	}
}

// Initialize must run before any graph is compiled. It is a no-op when
// debugging is disabled.
func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.IsEnabled() {
		return nil
	}

	d.logger.Info("initializing eino visual debug plugin")
	if err := devops.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}
	d.logger.Info("eino debug server started", zap.String("url", d.GetDebugURL()))
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.config != nil && d.config.EinoDebugEnabled
}

func (d *EinoDebugger) GetDebugURL() string {
	if !d.IsEnabled() {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", DevServerPort)
}
