package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassificationResult_Top(t *testing.T) {
	var empty ClassificationResult
	_, ok := empty.Top()
	require.False(t, ok)
	require.True(t, empty.Empty())

	r := ClassificationResult{Predictions: []Prediction{
		{Index: 2, Label: "siamese", Probability: 0.7},
		{Index: 0, Label: "british", Probability: 0.2},
	}}
	top, ok := r.Top()
	require.True(t, ok)
	require.Equal(t, "siamese", top.Label)
	require.Equal(t, "siamese: 70.0%, british: 20.0%", r.String())
}

func TestCameraGuessStatus(t *testing.T) {
	s := CameraGuessStatus(Prediction{Label: "siamese", Probability: 0.873})
	require.Equal(t, Status("Camera: siamese 87.3%"), s)
	require.Equal(t, Status("Error: model load failed"), ErrorStatus("model load failed"))
}

func TestNewTensor_Shape(t *testing.T) {
	_, err := NewTensor(2, 2, make([]float32, 5))
	require.Error(t, err)

	data := make([]float32, 12)
	data[4] = 1
	tensor, err := NewTensor(2, 2, data)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3, 2, 2}, tensor.Shape())
	require.Equal(t, []float32{1, 0, 0, 0}, tensor.Plane(1))

	// копия не меняет тензор
	tensor.Data()[4] = 5
	require.Equal(t, float32(1), tensor.Plane(1)[0])
}

func TestNormalizationParams_Validate(t *testing.T) {
	require.NoError(t, ImageNetNormalization().Validate())

	p := ImageNetNormalization()
	p.Std[1] = 0
	require.Error(t, p.Validate())
}

func TestImageBuffer_At(t *testing.T) {
	buf := &ImageBuffer{
		Width:  2,
		Height: 2,
		Pix:    []uint8{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
	}

	r, g, b := buf.At(1, 0)
	require.Equal(t, [3]uint8{4, 5, 6}, [3]uint8{r, g, b})
	r, g, b = buf.At(0, 1)
	require.Equal(t, [3]uint8{7, 8, 9}, [3]uint8{r, g, b})
}
