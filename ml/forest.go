package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

type RandomForest struct {
	trees []*DecisionTree
}

type forestArtifact struct {
	Trees [][]TreeNode `json:"trees"`
}

func NewRandomForest(trees ...*DecisionTree) (*RandomForest, error) {
	if len(trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	return &RandomForest{trees: trees}, nil
}

func (rf *RandomForest) Score(vector FeatureVector) (float64, error) {
	if len(rf.trees) == 0 {
		return 0, errors.New("model not loaded")
	}
	var sum float64
	for i, tree := range rf.trees {
		p, err := tree.Score(vector)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += p
	}
	return sum / float64(len(rf.trees)), nil
}

func (rf *RandomForest) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var artifact forestArtifact
	if err := json.Unmarshal(payload, &artifact); err != nil {
		return fmt.Errorf("decode random forest: %w", err)
	}
	if len(artifact.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	trees := make([]*DecisionTree, 0, len(artifact.Trees))
	for i, nodes := range artifact.Trees {
		tree, err := NewDecisionTree(nodes)
		if err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
		trees = append(trees, tree)
	}
	rf.trees = trees
	return nil
}
