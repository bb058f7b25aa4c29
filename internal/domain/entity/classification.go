package entity

import (
	"fmt"
	"strings"
	"time"
)

// OutputTensor — сырой выход модели.
type OutputTensor struct {
	Shape []int64
	Data  []float32
}

// OutputMap хранит выходы модели по именам.
type OutputMap map[string]OutputTensor

// Prediction описывает один класс в ранжированном ответе.
type Prediction struct {
	Index       int     `json:"index"`
	Label       string  `json:"label"`
	Probability float32 `json:"probability"`
}

// ClassificationResult хранит top-K классов по убыванию вероятности.
type ClassificationResult struct {
	Predictions []Prediction  `json:"predictions"`
	SessionID   string        `json:"session_id,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
}

// Top возвращает лучший класс, если он есть.
func (r ClassificationResult) Top() (Prediction, bool) {
	if len(r.Predictions) == 0 {
		return Prediction{}, false
	}
	return r.Predictions[0], true
}

// Empty сообщает, что результат ещё не получен.
func (r ClassificationResult) Empty() bool {
	return len(r.Predictions) == 0
}

// String форматирует результат как "кот: 70.0%, пёс: 20.0%".
func (r ClassificationResult) String() string {
	parts := make([]string, 0, len(r.Predictions))
	for _, p := range r.Predictions {
		parts = append(parts, fmt.Sprintf("%s: %.1f%%", p.Label, p.Probability*100))
	}
	return strings.Join(parts, ", ")
}
