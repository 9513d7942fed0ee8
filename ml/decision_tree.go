package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// DecisionTree 以前序扁平节点数组存储的决策树，叶子节点保存正类概率
type DecisionTree struct {
	nodes []TreeNode
}

type TreeNode struct {
	Feature     string  `json:"feature,omitempty"`
	Threshold   float64 `json:"threshold"`
	LeftChild   int     `json:"left_child"`
	RightChild  int     `json:"right_child"`
	Probability float64 `json:"probability"`
	IsLeaf      bool    `json:"is_leaf"`

	featureIdx int
}

func NewDecisionTree(nodes []TreeNode) (*DecisionTree, error) {
	dt := &DecisionTree{}
	if err := dt.set(nodes); err != nil {
		return nil, err
	}
	return dt, nil
}

func (dt *DecisionTree) Score(vector FeatureVector) (float64, error) {
	if len(dt.nodes) == 0 {
		return 0, errors.New("model not loaded")
	}
	idx := 0
	for {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return node.Probability, nil
		}
		if vector.values[node.featureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
}

func (dt *DecisionTree) Save(path string) error {
	if len(dt.nodes) == 0 {
		return errors.New("model not loaded")
	}
	payload, err := json.Marshal(dt.nodes)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (dt *DecisionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var nodes []TreeNode
	if err := json.Unmarshal(payload, &nodes); err != nil {
		return fmt.Errorf("decode decision tree: %w", err)
	}
	return dt.set(nodes)
}

// 子节点下标必须大于父节点，保证没有环
func (dt *DecisionTree) set(nodes []TreeNode) error {
	if len(nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	checked := make([]TreeNode, len(nodes))
	copy(checked, nodes)
	for i := range checked {
		node := &checked[i]
		if node.IsLeaf {
			if math.IsNaN(node.Probability) || node.Probability < 0 || node.Probability > 1 {
				return fmt.Errorf("node %d: leaf probability %v outside [0, 1]", i, node.Probability)
			}
			continue
		}
		idx, ok := featureIndex[node.Feature]
		if !ok {
			return fmt.Errorf("node %d: unknown feature %q", i, node.Feature)
		}
		node.featureIdx = idx
		if node.LeftChild <= i || node.LeftChild >= len(checked) {
			return fmt.Errorf("node %d: invalid left child %d", i, node.LeftChild)
		}
		if node.RightChild <= i || node.RightChild >= len(checked) {
			return fmt.Errorf("node %d: invalid right child %d", i, node.RightChild)
		}
	}
	dt.nodes = checked
	return nil
}
