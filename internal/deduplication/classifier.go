package deduplication

import (
	"fmt"
	"math"
)

// Classifier is a logistic regression over pair distance vectors
type Classifier struct {
	Weights []float64 `yaml:"weights"`
	Bias    float64   `yaml:"bias"`
}

// example is one labeled distance vector
type example struct {
	x     []float64
	match bool
}

// trainClassifier fits weights with batch gradient descent starting from
// zero, so the result depends only on the examples and cfg. Both classes
// carry the same total weight; labeled duplicates are usually rare.
func trainClassifier(examples []example, width int, cfg Config) (*Classifier, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("no labeled examples")
	}
	positives := 0
	for _, ex := range examples {
		if ex.match {
			positives++
		}
	}
	n := float64(len(examples))
	matchWeight, distinctWeight := 1.0, 1.0
	if positives > 0 && positives < len(examples) {
		matchWeight = n / (2 * float64(positives))
		distinctWeight = n / (2 * float64(len(examples)-positives))
	}

	c := &Classifier{Weights: make([]float64, width)}
	grad := make([]float64, width)

	for iter := 0; iter < cfg.Iterations; iter++ {
		for i := range grad {
			grad[i] = 0
		}
		gradBias := 0.0
		for _, ex := range examples {
			if len(ex.x) != width {
				return nil, fmt.Errorf("example has %d features, want %d", len(ex.x), width)
			}
			y, weight := 0.0, distinctWeight
			if ex.match {
				y, weight = 1, matchWeight
			}
			diff := (c.score(ex.x) - y) * weight
			for i, v := range ex.x {
				grad[i] += diff * v
			}
			gradBias += diff
		}
		for i := range c.Weights {
			c.Weights[i] -= cfg.LearningRate * (grad[i]/n + cfg.Regularization*c.Weights[i])
		}
		c.Bias -= cfg.LearningRate * gradBias / n
	}
	return c, nil
}

// score returns the match probability for a distance vector
func (c *Classifier) score(x []float64) float64 {
	z := c.Bias
	for i, v := range x {
		if i < len(c.Weights) {
			z += c.Weights[i] * v
		}
	}
	return 1 / (1 + math.Exp(-z))
}
