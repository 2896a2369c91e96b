package estimator

import (
	"github.com/mimir-aip/mimir-automl/pkg/dataset"
	"github.com/mimir-aip/mimir-automl/pkg/models"
)

// Evaluate scores a trained model on labelled data. Micro accuracy is the
// share of correct predictions; macro accuracy averages per-class recall over
// the classes present in the data.
func Evaluate(m Model, data *dataset.Dataset, labelColumn string) (models.TrialMetrics, error) {
	labels, err := data.Column(labelColumn)
	if err != nil {
		return models.TrialMetrics{}, err
	}

	classes, idx := DistinctClasses(labels)
	total := make([]int, len(classes))
	hits := make([]int, len(classes))
	correct := 0
	for i, label := range labels {
		total[idx[i]]++
		if m.Predict(data.Row(i)) == label {
			hits[idx[i]]++
			correct++
		}
	}

	metrics := models.TrialMetrics{TestRows: len(labels), Classes: len(classes)}
	if len(labels) == 0 {
		return metrics, nil
	}
	metrics.MicroAccuracy = float64(correct) / float64(len(labels))

	var recall float64
	for k := range classes {
		recall += float64(hits[k]) / float64(total[k])
	}
	metrics.MacroAccuracy = recall / float64(len(classes))
	return metrics, nil
}
