package hyperparam

import (
	"fmt"

	"github.com/mimir-aip/mimir-automl/pkg/models"
)

var (
	ErrUnknownParameter = fmt.Errorf("%w: unknown hyperparameter", models.ErrConfiguration)
	ErrMissingParameter = fmt.Errorf("%w: missing hyperparameter", models.ErrConfiguration)
	ErrInvalidValue     = fmt.Errorf("%w: invalid hyperparameter value", models.ErrConfiguration)
)
