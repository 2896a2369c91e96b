package trainer

import (
	"fmt"

	"github.com/mimir-aip/mimir-automl/pkg/models"
)

var (
	ErrUnregisteredTrainer = fmt.Errorf("%w: trainer extension is not registered", models.ErrConfiguration)
	ErrNotBinaryScorer     = fmt.Errorf("%w: nested estimator does not produce a binary score", models.ErrConfiguration)
	ErrDuplicateTrainer    = fmt.Errorf("%w: trainer registered twice", models.ErrConfiguration)
)
