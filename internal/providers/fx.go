package providers

import (
	"github.com/smallbiznis/kilekitabu/internal/providers/firebase"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	firebase.Module,
)
