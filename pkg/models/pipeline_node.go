package models

import "fmt"

// PipelineNode is the declarative, portable record of a configured trainer.
// OVA trainers carry the node of their binary learner in NestedBinaryNode.
type PipelineNode struct {
	TrainerName      TrainerName   `json:"trainer_name" yaml:"trainer_name"`
	Hyperparameters  Assignment    `json:"hyperparameters" yaml:"hyperparameters"`
	LabelColumn      string        `json:"label_column" yaml:"label_column"`
	WeightColumn     *string       `json:"weight_column" yaml:"weight_column"`
	NestedBinaryNode *PipelineNode `json:"nested_binary_node,omitempty" yaml:"nested_binary_node,omitempty"`
}

// Validate checks if the PipelineNode is valid
func (n *PipelineNode) Validate() error {
	if n.TrainerName == "" {
		return fmt.Errorf("trainer name is required")
	}
	if n.LabelColumn == "" {
		return fmt.Errorf("label column is required")
	}
	if n.NestedBinaryNode != nil {
		if err := n.NestedBinaryNode.Validate(); err != nil {
			return fmt.Errorf("nested node: %w", err)
		}
	}
	return nil
}

// Clone returns a deep copy of the node and its nested nodes
func (n *PipelineNode) Clone() *PipelineNode {
	if n == nil {
		return nil
	}
	out := &PipelineNode{
		TrainerName:     n.TrainerName,
		Hyperparameters: n.Hyperparameters.Clone(),
		LabelColumn:     n.LabelColumn,
	}
	if n.WeightColumn != nil {
		w := *n.WeightColumn
		out.WeightColumn = &w
	}
	out.NestedBinaryNode = n.NestedBinaryNode.Clone()
	return out
}

// Equal reports structural equality, including value types of hyperparameters
func (n *PipelineNode) Equal(other *PipelineNode) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.TrainerName != other.TrainerName || n.LabelColumn != other.LabelColumn {
		return false
	}
	if (n.WeightColumn == nil) != (other.WeightColumn == nil) {
		return false
	}
	if n.WeightColumn != nil && *n.WeightColumn != *other.WeightColumn {
		return false
	}
	if !n.Hyperparameters.Equal(other.Hyperparameters) {
		return false
	}
	return n.NestedBinaryNode.Equal(other.NestedBinaryNode)
}

// Depth returns the number of nodes in the nesting chain
func (n *PipelineNode) Depth() int {
	depth := 0
	for cur := n; cur != nil; cur = cur.NestedBinaryNode {
		depth++
	}
	return depth
}
