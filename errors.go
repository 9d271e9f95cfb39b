package ranger

import "github.com/horockey/ranger/internal/model"

type (
	InitializationError  = model.InitializationError
	ServiceNotFoundError = model.ServiceNotFoundError
	NoNodesError         = model.NoNodesError
)

var ErrSourceInactive = model.ErrSourceInactive
