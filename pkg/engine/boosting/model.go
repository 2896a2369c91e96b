package boosting

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xh3b4sd/tracer"
	"gonum.org/v1/gonum/floats"

	"github.com/mimir-aip/mimir-automl/pkg/estimator"
)

// zeroThreshold is the magnitude below which LightGBM treats a value as zero
const zeroThreshold = 1e-35

// dump is the subset of LightGBM's dump_model JSON the evaluator reads
type dump struct {
	NumClass            int        `json:"num_class"`
	NumTreePerIteration int        `json:"num_tree_per_iteration"`
	Objective           string     `json:"objective"`
	TreeInfo            []treeInfo `json:"tree_info"`
}

type treeInfo struct {
	TreeIndex     int       `json:"tree_index"`
	TreeStructure *treeNode `json:"tree_structure"`
}

type treeNode struct {
	SplitFeature int             `json:"split_feature"`
	Threshold    json.RawMessage `json:"threshold"`
	DecisionType string          `json:"decision_type"`
	DefaultLeft  bool            `json:"default_left"`
	MissingType  string          `json:"missing_type"`
	LeftChild    *treeNode       `json:"left_child"`
	RightChild   *treeNode       `json:"right_child"`
	LeafValue    *float64        `json:"leaf_value"`

	threshold  float64
	categories map[int]bool
}

func (n *treeNode) isLeaf() bool {
	return n.LeftChild == nil || n.RightChild == nil
}

// compile parses the thresholds: a number for "<=" splits, a "||" separated
// category list for "==" splits
func (n *treeNode) compile() error {
	if n.isLeaf() {
		if n.LeafValue == nil {
			return errors.New("leaf without value")
		}
		return nil
	}

	if n.DecisionType == "==" {
		var raw string
		if err := json.Unmarshal(n.Threshold, &raw); err != nil {
			return fmt.Errorf("categorical threshold: %w", err)
		}
		n.categories = make(map[int]bool)
		for _, c := range strings.Split(raw, "||") {
			k, err := strconv.Atoi(c)
			if err != nil {
				return fmt.Errorf("categorical threshold %q: %w", raw, err)
			}
			n.categories[k] = true
		}
	} else {
		if err := json.Unmarshal(n.Threshold, &n.threshold); err != nil {
			return fmt.Errorf("numerical threshold: %w", err)
		}
	}

	if err := n.LeftChild.compile(); err != nil {
		return err
	}
	return n.RightChild.compile()
}

func (n *treeNode) predict(row []float64) float64 {
	for !n.isLeaf() {
		v := row[n.SplitFeature]
		if n.goLeft(v) {
			n = n.LeftChild
		} else {
			n = n.RightChild
		}
	}
	return *n.LeafValue
}

func (n *treeNode) goLeft(v float64) bool {
	if n.categories != nil {
		if math.IsNaN(v) || v < 0 {
			return false
		}
		return n.categories[int(v)]
	}

	switch n.MissingType {
	case "NaN":
		if math.IsNaN(v) {
			return n.DefaultLeft
		}
	case "Zero":
		if math.IsNaN(v) {
			v = 0
		}
		if math.Abs(v) <= zeroThreshold {
			return n.DefaultLeft
		}
	default:
		if math.IsNaN(v) {
			v = 0
		}
	}
	return v <= n.threshold
}

// Model is a trained LightGBM multiclass booster evaluated in process
type Model struct {
	classes []string
	softmax bool
	trees   [][]*treeNode // per class
}

// ParseModel reads a dump_model JSON document. Tree i contributes to class
// i modulo the number of trees per iteration.
func ParseModel(byt []byte, classes []string) (*Model, error) {
	var d dump
	{
		err := json.Unmarshal(byt, &d)
		if err != nil {
			return nil, tracer.Mask(err)
		}
	}

	k := d.NumTreePerIteration
	if k == 0 {
		k = max(d.NumClass, 1)
	}
	if k != len(classes) {
		return nil, fmt.Errorf("model has %d trees per iteration for %d classes", k, len(classes))
	}

	m := &Model{
		classes: classes,
		softmax: !strings.HasPrefix(d.Objective, "multiclassova"),
		trees:   make([][]*treeNode, k),
	}
	for i, t := range d.TreeInfo {
		if t.TreeStructure == nil {
			return nil, fmt.Errorf("tree %d has no structure", i)
		}
		if err := t.TreeStructure.compile(); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		m.trees[i%k] = append(m.trees[i%k], t.TreeStructure)
	}

	return m, nil
}

func (m *Model) Classes() []string {
	return append([]string(nil), m.classes...)
}

// Scores returns the raw per-class booster outputs
func (m *Model) Scores(row []float64) []float64 {
	scores := make([]float64, len(m.classes))
	for k, trees := range m.trees {
		for _, t := range trees {
			scores[k] += t.predict(row)
		}
	}
	return scores
}

func (m *Model) Predict(row []float64) string {
	return m.classes[estimator.Argmax(m.Scores(row))]
}

// Probabilities applies the softmax, or the per-class sigmoid of the
// one-versus-all objective
func (m *Model) Probabilities(row []float64) []float64 {
	scores := m.Scores(row)
	if m.softmax {
		lse := floats.LogSumExp(scores)
		for k := range scores {
			scores[k] = math.Exp(scores[k] - lse)
		}
		return scores
	}
	for k := range scores {
		scores[k] = 1 / (1 + math.Exp(-scores[k]))
	}
	return scores
}
