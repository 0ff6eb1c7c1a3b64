package mora

import (
	"github.com/casaflow/casaflow/internal/mora/service"
	"go.uber.org/fx"
)

var Module = fx.Module("mora.service",
	fx.Provide(service.NewService),
)
