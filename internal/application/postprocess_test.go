package app

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"vision-classifier/internal/domain/entity"
)

func TestResolveOutputName(t *testing.T) {
	cases := []struct {
		declared      []string
		name          string
		probabilities bool
	}{
		{[]string{"logits"}, "logits", false},
		{[]string{"probabilities", "extra"}, "probabilities", true},
		{[]string{"foo"}, "foo", false},
		{[]string{"extra", "output"}, "output", false},
		{[]string{"output", "logits"}, "logits", false},
		{[]string{"logits", "softmax"}, "softmax", true},
		{[]string{"softmax", "prob"}, "prob", true},
		{nil, "", false},
	}

	for _, tc := range cases {
		name, probs := ResolveOutputName(tc.declared)
		require.Equal(t, tc.name, name, "declared %v", tc.declared)
		require.Equal(t, tc.probabilities, probs, "declared %v", tc.declared)
	}
}

func TestSoftmax_SumsToOne(t *testing.T) {
	inputs := [][]float32{
		{1, 2, 3},
		{0},
		{1000, 1001, 999},
		{-50, 0, 50, 3.5},
	}
	for _, in := range inputs {
		probs, err := Softmax(in)
		require.NoError(t, err)

		var sum float64
		for _, p := range probs {
			require.GreaterOrEqual(t, p, float32(0))
			sum += float64(p)
		}
		require.InDelta(t, 1.0, sum, 1e-5, "input %v", in)
	}
}

func TestSoftmax_PreservesOrder(t *testing.T) {
	probs, err := Softmax([]float32{2, 5, -1})
	require.NoError(t, err)
	require.Greater(t, probs[1], probs[0])
	require.Greater(t, probs[0], probs[2])
}

func TestSoftmax_NumericFailure(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	negInf := float32(math.Inf(-1))

	for _, in := range [][]float32{{nan, 1}, {inf, 1}, {negInf, negInf}, {}} {
		_, err := Softmax(in)
		require.ErrorIs(t, err, entity.ErrNumeric, "input %v", in)
	}
}

func TestTopK(t *testing.T) {
	values := []float32{0.7, 0.2, 0.05, 0.05}

	require.Equal(t, []int{0, 1, 2}, TopK(values, 3))
	require.Equal(t, []int{0, 1, 2, 3}, TopK(values, 10))
	require.Equal(t, []int{0, 1, 2, 3}, TopK(values, 0))
	require.Equal(t, []int{0}, TopK(values, 1))
	require.Nil(t, TopK(nil, 3))
}

func TestTopK_TiesByIndex(t *testing.T) {
	values := []float32{0.1, 0.4, 0.4, 0.1, 0.4}

	require.Equal(t, []int{1, 2, 4, 0}, TopK(values, 4))
}

func TestTopK_Unsorted(t *testing.T) {
	values := []float32{0.01, 0.3, 0.05, 0.5, 0.14}

	require.Equal(t, []int{3, 1, 4}, TopK(values, 3))
}

func TestPostprocess_Probabilities(t *testing.T) {
	outputs := entity.OutputMap{
		"probabilities": {Shape: []int64{1, 4}, Data: []float32{0.7, 0.2, 0.05, 0.05}},
	}
	labels := entity.Labels{"cat", "dog", "bird"}

	result, err := Postprocess(outputs, "probabilities", labels, 3)
	require.NoError(t, err)

	want := []entity.Prediction{
		{Index: 0, Label: "cat", Probability: 0.7},
		{Index: 1, Label: "dog", Probability: 0.2},
		{Index: 2, Label: "bird", Probability: 0.05},
	}
	if diff := cmp.Diff(want, result.Predictions); diff != "" {
		t.Fatalf("predictions mismatch (-want +got):\n%s", diff)
	}
}

func TestPostprocess_LogitsAndFallbackLabels(t *testing.T) {
	outputs := entity.OutputMap{
		"logits": {Shape: []int64{1, 4}, Data: []float32{0, 0, 0, 5}},
	}

	result, err := Postprocess(outputs, "logits", entity.Labels{"a", "b"}, 3)
	require.NoError(t, err)
	require.Len(t, result.Predictions, 3)

	top, ok := result.Top()
	require.True(t, ok)
	require.Equal(t, 3, top.Index)
	require.Equal(t, "cls_3", top.Label)
	require.Greater(t, top.Probability, float32(0.9))

	var sum float64
	probs, err := Softmax([]float32{0, 0, 0, 5})
	require.NoError(t, err)
	for _, p := range probs {
		sum += float64(p)
	}
	require.InDelta(t, 1.0, sum, 1e-5)
}

func TestPostprocess_TopKLargerThanClasses(t *testing.T) {
	outputs := entity.OutputMap{
		"prob": {Shape: []int64{1, 2}, Data: []float32{0.25, 0.75}},
	}

	result, err := Postprocess(outputs, "prob", nil, 5)
	require.NoError(t, err)
	require.Len(t, result.Predictions, 2)
	require.Equal(t, 1, result.Predictions[0].Index)
}

func TestPostprocess_FirstBatchRow(t *testing.T) {
	outputs := entity.OutputMap{
		"prob": {Shape: []int64{2, 3}, Data: []float32{0.1, 0.8, 0.1, 0.9, 0.05, 0.05}},
	}

	result, err := Postprocess(outputs, "prob", nil, 1)
	require.NoError(t, err)
	require.Equal(t, 1, result.Predictions[0].Index)
}

func TestPostprocess_Errors(t *testing.T) {
	_, err := Postprocess(entity.OutputMap{}, "logits", nil, 3)
	require.ErrorIs(t, err, entity.ErrInference)

	_, err = Postprocess(entity.OutputMap{"logits": {Shape: []int64{1, 0}}}, "logits", nil, 3)
	require.ErrorIs(t, err, entity.ErrInference)

	nan := float32(math.NaN())
	_, err = Postprocess(entity.OutputMap{"probs": {Shape: []int64{1, 2}, Data: []float32{nan, 1}}}, "probs", nil, 3)
	require.ErrorIs(t, err, entity.ErrNumeric)

	inf := float32(math.Inf(1))
	_, err = Postprocess(entity.OutputMap{"logits": {Shape: []int64{1, 2}, Data: []float32{inf, 1}}}, "logits", nil, 3)
	require.ErrorIs(t, err, entity.ErrNumeric)
}
