package app

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	"vision-classifier/internal/domain/entity"
)

// Имена выходов в порядке предпочтения. Разные экспортёры называют
// тензор с оценками классов по-разному.
var (
	// ProbabilityAliases перечисляет выходы, уже содержащие распределение вероятностей.
	ProbabilityAliases = []string{"prob", "probs", "probabilities", "softmax"}

	// LogitAliases перечисляет выходы с сырыми логитами.
	LogitAliases = []string{"logits", "output"}
)

// ResolveOutputName выбирает выход с оценками классов из объявленных имён.
// Сначала ищется вероятностный алиас, затем логиты, иначе берётся первый выход.
func ResolveOutputName(declared []string) (name string, probabilities bool) {
	if len(declared) == 0 {
		return "", false
	}
	if n, ok := firstPresent(ProbabilityAliases, declared); ok {
		return n, true
	}
	if n, ok := firstPresent(LogitAliases, declared); ok {
		return n, false
	}
	return declared[0], false
}

// IsProbabilityOutput сообщает, что выход с таким именем уже нормирован.
func IsProbabilityOutput(name string) bool {
	for _, alias := range ProbabilityAliases {
		if alias == name {
			return true
		}
	}
	return false
}

func firstPresent(aliases, declared []string) (string, bool) {
	for _, alias := range aliases {
		for _, name := range declared {
			if name == alias {
				return alias, true
			}
		}
	}
	return "", false
}

// Softmax считает устойчивый softmax: максимум вычитается до экспоненты.
func Softmax(logits []float32) ([]float32, error) {
	maxV := math.Inf(-1)
	for _, v := range logits {
		if float64(v) > maxV {
			maxV = float64(v)
		}
	}

	exps := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v) - maxV)
		exps[i] = e
		sum += e
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, entity.NewError(entity.ErrNumeric, "postprocess",
			fmt.Errorf("softmax denominator is %v", sum))
	}

	probs := make([]float32, len(logits))
	for i, e := range exps {
		probs[i] = float32(e / sum)
	}
	return probs, nil
}

// TopK возвращает индексы k лучших значений: по убыванию, при равенстве меньший индекс раньше.
// k <= 0 или k больше длины означает все значения.
func TopK(values []float32, k int) []int {
	if k <= 0 || k > len(values) {
		k = len(values)
	}
	if k == 0 {
		return nil
	}

	h := &rankHeap{values: values}
	for i := range values {
		if h.Len() < k {
			heap.Push(h, i)
			continue
		}
		if ranksBefore(values, i, h.idx[0]) {
			h.idx[0] = i
			heap.Fix(h, 0)
		}
	}

	out := h.idx
	sort.Slice(out, func(a, b int) bool { return ranksBefore(values, out[a], out[b]) })
	return out
}

// ranksBefore: i идёт раньше j в ранжировании.
func ranksBefore(values []float32, i, j int) bool {
	if values[i] != values[j] {
		return values[i] > values[j]
	}
	return i < j
}

// rankHeap держит в корне худший из отобранных индексов.
type rankHeap struct {
	values []float32
	idx    []int
}

func (h *rankHeap) Len() int           { return len(h.idx) }
func (h *rankHeap) Less(a, b int) bool { return ranksBefore(h.values, h.idx[b], h.idx[a]) }
func (h *rankHeap) Swap(a, b int)      { h.idx[a], h.idx[b] = h.idx[b], h.idx[a] }
func (h *rankHeap) Push(x any)         { h.idx = append(h.idx, x.(int)) }
func (h *rankHeap) Pop() any {
	last := h.idx[len(h.idx)-1]
	h.idx = h.idx[:len(h.idx)-1]
	return last
}

// ClassScores возвращает оценки классов первого элемента батча.
// Число классов берётся из последнего измерения формы выхода.
func ClassScores(out entity.OutputTensor) []float32 {
	n := len(out.Data)
	if len(out.Shape) > 0 {
		if last := out.Shape[len(out.Shape)-1]; last > 0 && int(last) < n {
			n = int(last)
		}
	}
	return out.Data[:n]
}

// Postprocess превращает выход модели в top-K классов с подписями.
func Postprocess(outputs entity.OutputMap, outputName string, labels entity.Labels, k int) (entity.ClassificationResult, error) {
	out, ok := outputs[outputName]
	if !ok {
		return entity.ClassificationResult{}, entity.NewError(entity.ErrInference, "postprocess",
			fmt.Errorf("output %q not found", outputName))
	}
	scores := ClassScores(out)
	if len(scores) == 0 {
		return entity.ClassificationResult{}, entity.NewError(entity.ErrInference, "postprocess",
			fmt.Errorf("output %q is empty", outputName))
	}

	var probs []float32
	if IsProbabilityOutput(outputName) {
		for i, v := range scores {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return entity.ClassificationResult{}, entity.NewError(entity.ErrNumeric, "postprocess",
					fmt.Errorf("probability %d is %v", i, v))
			}
		}
		probs = scores
	} else {
		var err error
		if probs, err = Softmax(scores); err != nil {
			return entity.ClassificationResult{}, err
		}
	}

	top := TopK(probs, k)
	result := entity.ClassificationResult{Predictions: make([]entity.Prediction, 0, len(top))}
	for _, i := range top {
		result.Predictions = append(result.Predictions, entity.Prediction{
			Index:       i,
			Label:       labels.Label(i),
			Probability: probs[i],
		})
	}
	return result, nil
}
