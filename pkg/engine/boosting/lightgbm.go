// Package boosting trains LightGBM multiclass boosters. Training runs in a
// Python child process rendered from a script template; the dumped model is
// evaluated in Go.
package boosting

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"text/template"

	"github.com/xh3b4sd/tracer"

	"github.com/mimir-aip/mimir-automl/pkg/dataset"
	"github.com/mimir-aip/mimir-automl/pkg/estimator"
)

var ErrTooFewClasses = errors.New("lightgbm needs at least two classes")

// LightGbmOptions configures LightGbm. Zero values fall back to LightGBM's
// own defaults.
type LightGbmOptions struct {
	LabelColumn                       string
	WeightColumn                      string
	NumberOfIterations                int
	LearningRate                      float64
	NumberOfLeaves                    int
	MinimumExampleCountPerGroup       int
	MaximumCategoricalSplitPointCount int
	CategoricalSmoothing              float64
	L2CategoricalRegularization       float64
	// UseSoftmax selects the multiclass objective; nil leaves the choice to
	// the engine, which picks softmax
	UseSoftmax       *bool
	L2Regularization float64
	L1Regularization float64
}

// LightGbm is a multiclass gradient boosted trees estimator
type LightGbm struct {
	opts LightGbmOptions
	// Deb streams the child process output to this process when set.
	Deb  bool
	pyt  string
	seed int64
	// Tem is the Python script template, deftem when empty.
	Tem string
}

func NewLightGbm(opts LightGbmOptions, env *estimator.Env) *LightGbm {
	l := &LightGbm{opts: opts, pyt: env.Python()}
	if env != nil {
		l.seed = env.Seed
	}
	return l
}

func (l *LightGbm) Options() LightGbmOptions {
	return l.opts
}

func (l *LightGbm) Fit(ctx context.Context, data *dataset.Dataset) (estimator.Model, error) {
	labels, err := data.Column(l.opts.LabelColumn)
	if err != nil {
		return nil, err
	}
	var weights []float64
	if l.opts.WeightColumn != "" {
		weights, err = data.Weights(l.opts.WeightColumn)
		if err != nil {
			return nil, err
		}
	}

	classes, idx := estimator.DistinctClasses(labels)
	if len(classes) < 2 {
		return nil, fmt.Errorf("%w: %s has %d", ErrTooFewClasses, l.opts.LabelColumn, len(classes))
	}

	dir, err := os.MkdirTemp("", "lightgbm-*")
	if err != nil {
		return nil, tracer.Mask(err)
	}
	defer os.RemoveAll(dir)

	{
		err := writeMatrix(filepath.Join(dir, "train.csv"), data, idx, weights)
		if err != nil {
			return nil, tracer.Mask(err)
		}
	}

	var byt []byte
	{
		byt, err = l.Execute(filepath.Join(dir, "train.csv"), filepath.Join(dir, "model.json"), len(classes))
		if err != nil {
			return nil, tracer.Mask(err)
		}
	}

	{
		err := os.WriteFile(filepath.Join(dir, "train.py"), byt, 0644)
		if err != nil {
			return nil, tracer.Mask(err)
		}
	}

	{
		err := l.run(ctx, filepath.Join(dir, "train.py"))
		if err != nil {
			return nil, err
		}
	}

	{
		byt, err = os.ReadFile(filepath.Join(dir, "model.json"))
		if err != nil {
			return nil, tracer.Mask(err)
		}
	}

	return ParseModel(byt, classes)
}

// Execute renders the training script for the given input and output paths
func (l *LightGbm) Execute(dat string, out string, classes int) ([]byte, error) {
	tem := l.Tem
	if tem == "" {
		tem = deftem
	}

	var buf bytes.Buffer
	{
		t, err := template.New("lightgbm").Parse(tem)
		if err != nil {
			return nil, tracer.Mask(err)
		}

		err = t.Execute(&buf, l.mapping(dat, out, classes))
		if err != nil {
			return nil, tracer.Mask(err)
		}
	}

	return buf.Bytes(), nil
}

func (l *LightGbm) run(ctx context.Context, script string) error {
	cmd := exec.CommandContext(ctx, l.pyt, script)

	var stderr bytes.Buffer
	if l.Deb {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stderr = &stderr
	}

	{
		err := cmd.Run()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return fmt.Errorf("lightgbm training failed: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
		}
	}

	return nil
}

func (l *LightGbm) mapping(dat string, out string, classes int) map[string]interface{} {
	o := l.opts

	obj := "multiclass"
	if o.UseSoftmax != nil && !*o.UseSoftmax {
		obj = "multiclassova"
	}

	return map[string]interface{}{
		"Dat": dat,
		"Obj": obj,
		"Cla": classes,
		"Lrn": formatFloat(o.LearningRate, 0.1),
		"Lvs": orInt(o.NumberOfLeaves, 31),
		"Min": orInt(o.MinimumExampleCountPerGroup, 100),
		"Max": orInt(o.MaximumCategoricalSplitPointCount, 32),
		"Smo": formatFloat(o.CategoricalSmoothing, 10),
		"Cl2": formatFloat(o.L2CategoricalRegularization, 10),
		"L2":  formatFloat(o.L2Regularization, 0),
		"L1":  formatFloat(o.L1Regularization, 0),
		"See": l.seed,
		"Rou": orInt(o.NumberOfIterations, 100),
		"Out": out,
	}
}

// writeMatrix writes label index, weight and features per row without a
// header. Missing features are written as NaN.
func writeMatrix(path string, data *dataset.Dataset, idx []int, weights []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i := range idx {
		weight := 1.0
		if weights != nil {
			weight = weights[i]
		}
		line := strconv.AppendInt(nil, int64(idx[i]), 10)
		line = append(line, ',')
		line = strconv.AppendFloat(line, weight, 'g', -1, 64)
		for _, v := range data.Row(i) {
			line = append(line, ',')
			line = strconv.AppendFloat(line, v, 'g', -1, 64)
		}
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func formatFloat(v, def float64) string {
	if v == 0 {
		v = def
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
