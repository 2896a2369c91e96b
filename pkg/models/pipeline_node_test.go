package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func sampleNode() *PipelineNode {
	params := Assignment{
		"learningRate":       0.1,
		"numberOfIterations": 10,
		"l2Weight":           1.0,
		"shuffle":            true,
		"lossFunction":       Auto,
	}
	return &PipelineNode{
		TrainerName:     TrainerAveragedPerceptronOva,
		Hyperparameters: params.Clone(),
		LabelColumn:     "Label",
		NestedBinaryNode: &PipelineNode{
			TrainerName:     TrainerAveragedPerceptron,
			Hyperparameters: params.Clone(),
			LabelColumn:     "Label",
		},
	}
}

// TestPipelineNodeJSONRoundTrip tests nesting and value types survive JSON
func TestPipelineNodeJSONRoundTrip(t *testing.T) {
	node := sampleNode()

	data, err := json.Marshal(node)
	if err != nil {
		t.Fatalf("Failed to marshal node: %v", err)
	}
	if !strings.Contains(string(data), `"l2Weight":1.0`) {
		t.Errorf("Expected float hyperparameter to keep its decimal point, got %s", data)
	}
	if !strings.Contains(string(data), `"weight_column":null`) {
		t.Errorf("Expected explicit null weight column, got %s", data)
	}

	var decoded PipelineNode
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal node: %v", err)
	}
	if !node.Equal(&decoded) {
		t.Errorf("Expected round-tripped node to equal original, got %+v", decoded)
	}
	if _, ok := decoded.Hyperparameters["numberOfIterations"].(int); !ok {
		t.Errorf("Expected numberOfIterations to decode as int, got %T", decoded.Hyperparameters["numberOfIterations"])
	}
	if _, ok := decoded.NestedBinaryNode.Hyperparameters["l2Weight"].(float64); !ok {
		t.Errorf("Expected nested l2Weight to decode as float64, got %T", decoded.NestedBinaryNode.Hyperparameters["l2Weight"])
	}
}

// TestPipelineNodeYAMLRoundTrip tests nesting and value types survive YAML
func TestPipelineNodeYAMLRoundTrip(t *testing.T) {
	node := sampleNode()
	weight := "Weight"
	node.NestedBinaryNode.WeightColumn = &weight

	data, err := yaml.Marshal(node)
	if err != nil {
		t.Fatalf("Failed to marshal node: %v", err)
	}

	var decoded PipelineNode
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal node: %v\n%s", err, data)
	}
	if !node.Equal(&decoded) {
		t.Errorf("Expected round-tripped node to equal original, got:\n%s", data)
	}
	if decoded.Hyperparameters["lossFunction"] != Auto {
		t.Errorf("Expected lossFunction %q, got %v", Auto, decoded.Hyperparameters["lossFunction"])
	}
	if decoded.WeightColumn != nil {
		t.Errorf("Expected nil weight column at OVA level, got %q", *decoded.WeightColumn)
	}
	if decoded.NestedBinaryNode.WeightColumn == nil || *decoded.NestedBinaryNode.WeightColumn != "Weight" {
		t.Errorf("Expected nested weight column Weight, got %v", decoded.NestedBinaryNode.WeightColumn)
	}
}

// TestPipelineNodeEmptyHyperparameters tests an empty assignment stays non-nil
func TestPipelineNodeEmptyHyperparameters(t *testing.T) {
	node := &PipelineNode{TrainerName: TrainerSdcaMulti, Hyperparameters: Assignment{}, LabelColumn: "Label"}

	data, err := yaml.Marshal(node)
	if err != nil {
		t.Fatalf("Failed to marshal node: %v", err)
	}
	var fromYAML PipelineNode
	if err := yaml.Unmarshal(data, &fromYAML); err != nil {
		t.Fatalf("Failed to unmarshal node: %v", err)
	}
	if fromYAML.Hyperparameters == nil || len(fromYAML.Hyperparameters) != 0 {
		t.Errorf("Expected empty non-nil hyperparameters, got %#v", fromYAML.Hyperparameters)
	}

	data, err = json.Marshal(node)
	if err != nil {
		t.Fatalf("Failed to marshal node: %v", err)
	}
	var fromJSON PipelineNode
	if err := json.Unmarshal(data, &fromJSON); err != nil {
		t.Fatalf("Failed to unmarshal node: %v", err)
	}
	if !node.Equal(&fromJSON) {
		t.Errorf("Expected JSON round trip to preserve empty node, got %+v", fromJSON)
	}
}

func TestPipelineNodeCloneIsDeep(t *testing.T) {
	node := sampleNode()
	clone := node.Clone()
	if !node.Equal(clone) {
		t.Fatal("Expected clone to equal original")
	}

	clone.NestedBinaryNode.Hyperparameters["learningRate"] = 0.5
	if node.NestedBinaryNode.Hyperparameters["learningRate"] != 0.1 {
		t.Error("Expected clone mutation not to leak into original")
	}
	if node.Equal(clone) {
		t.Error("Expected mutated clone to differ")
	}
	if node.Depth() != 2 {
		t.Errorf("Expected depth 2, got %d", node.Depth())
	}
}

func TestPipelineNodeValidate(t *testing.T) {
	tests := []struct {
		name    string
		node    *PipelineNode
		wantErr bool
	}{
		{"valid", sampleNode(), false},
		{"missing trainer", &PipelineNode{LabelColumn: "Label"}, true},
		{"missing label", &PipelineNode{TrainerName: TrainerSgd}, true},
		{"invalid nested", &PipelineNode{TrainerName: TrainerSgdOva, LabelColumn: "Label", NestedBinaryNode: &PipelineNode{}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.node.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestColumnInformation(t *testing.T) {
	cols := NewColumnInformation("Label")
	if _, ok := cols.Weight(); ok {
		t.Error("Expected no weight column")
	}

	weighted := cols.WithWeight("W")
	if w, ok := weighted.Weight(); !ok || w != "W" {
		t.Errorf("Expected weight column W, got %q", w)
	}
	if cols.WeightColumn != nil {
		t.Error("Expected WithWeight to leave the receiver untouched")
	}

	if err := NewColumnInformation("").Validate(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Expected configuration error for empty label, got %v", err)
	}
	if err := NewColumnInformation("L").WithWeight("L").Validate(); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Expected configuration error for weight equal to label, got %v", err)
	}
}
