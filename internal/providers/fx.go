package providers

import (
	"github.com/smallbiznis/kay/internal/providers/email"
	"github.com/smallbiznis/kay/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
