package modules

import (
	"go.uber.org/fx"

	"github.com/lumenpress/mediaflow/internal/pipeline"
)

var PipelineModule = fx.Module(
	"pipeline",
	fx.Provide(
		pipeline.New,
	),
)
