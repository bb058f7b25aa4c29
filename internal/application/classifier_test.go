package app

import (
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vision-classifier/internal/domain/entity"
)

type failingResizer struct{ err error }

func (r failingResizer) Resize(ctx context.Context, imageData []byte) ([]byte, error) {
	return nil, r.err
}

func newTestClassifier(t *testing.T, models ...*fakeModel) (*ClassifierService, *SessionManager, *recordingBus) {
	t.Helper()
	bus := newRecordingBus()
	manager, _ := newLoadedManager(t, bus, models...)
	labels := entity.Labels{"cat", "dog", "bird"}
	svc := NewClassifierService(manager, passthroughResizer{}, bus, labels, entity.ImageNetNormalization(), 0)
	return svc, manager, bus
}

func grayImage(t *testing.T) []byte {
	return uniformPNG(t, entity.InputSize, entity.InputSize, color.NRGBA{R: 120, G: 120, B: 120, A: 255})
}

func TestClassifyImage(t *testing.T) {
	model := newFakeModel("a", map[string][]float32{"logits": {1, 4, 2, 0}}, "logits")
	svc, _, bus := newTestClassifier(t, model)

	result, err := svc.ClassifyImage(context.Background(), grayImage(t))
	require.NoError(t, err)
	require.Len(t, result.Predictions, DefaultTopK)
	require.Equal(t, "dog", result.Predictions[0].Label)
	require.Equal(t, "bird", result.Predictions[1].Label)
	require.Equal(t, "cat", result.Predictions[2].Label)
	require.NotEmpty(t, result.SessionID)

	require.Equal(t, entity.StatusReady, bus.Status())
	require.True(t, bus.Saw(entity.StatusClassifying))
	require.Equal(t, result, bus.Result())
	require.False(t, svc.Busy())
}

func TestClassifyImage_Busy(t *testing.T) {
	model := newFakeModel("a", map[string][]float32{"prob": {0.2, 0.8}}, "prob")
	model.gate = make(chan struct{})
	model.started = make(chan struct{}, 1)
	svc, _, _ := newTestClassifier(t, model)

	done := make(chan error, 1)
	go func() {
		_, err := svc.ClassifyImage(context.Background(), grayImage(t))
		done <- err
	}()
	<-model.started
	require.True(t, svc.Busy())

	_, err := svc.ClassifyImage(context.Background(), grayImage(t))
	require.ErrorIs(t, err, entity.ErrBusy)

	close(model.gate)
	require.NoError(t, <-done)
	require.False(t, svc.Busy())
}

func TestClassifyImage_SilentIndependentOfBusy(t *testing.T) {
	model := newFakeModel("a", map[string][]float32{"prob": {0.2, 0.8}}, "prob")
	gate := make(chan struct{})
	model.gate = gate
	model.started = make(chan struct{}, 2)
	svc, _, bus := newTestClassifier(t, model)

	done := make(chan error, 1)
	go func() {
		_, err := svc.ClassifyImage(context.Background(), grayImage(t))
		done <- err
	}()
	<-model.started

	silent := make(chan error, 1)
	go func() {
		_, err := svc.ClassifyFrame(context.Background(), grayImage(t))
		silent <- err
	}()
	<-model.started
	require.Equal(t, entity.StatusClassifying, bus.Status())

	close(gate)
	require.NoError(t, <-silent)
	require.NoError(t, <-done)
}

func TestClassifyImage_NotReady(t *testing.T) {
	bus := newRecordingBus()
	manager := NewSessionManager(&fakeLoader{}, bus)
	svc := NewClassifierService(manager, passthroughResizer{}, bus, nil, entity.ImageNetNormalization(), 3)

	_, err := svc.ClassifyImage(context.Background(), grayImage(t))
	require.ErrorIs(t, err, entity.ErrSessionNotReady)
	require.Equal(t, entity.StatusLoadingModel, bus.Status())
	require.True(t, bus.Result().Empty())
}

func TestClassifyImage_DecodeFailure(t *testing.T) {
	model := newFakeModel("a", map[string][]float32{"prob": {0.2, 0.8}}, "prob")
	svc, manager, bus := newTestClassifier(t, model)

	_, err := svc.ClassifyImage(context.Background(), []byte("garbage"))
	require.ErrorIs(t, err, entity.ErrDecode)
	require.Equal(t, entity.ErrorStatus("invalid image"), bus.Status())
	require.True(t, manager.Ready())
	require.Zero(t, model.runs.Load())
}

func TestClassifyImage_ResizeFailure(t *testing.T) {
	model := newFakeModel("a", map[string][]float32{"prob": {0.2, 0.8}}, "prob")
	bus := newRecordingBus()
	manager, _ := newLoadedManager(t, bus, model)
	svc := NewClassifierService(manager, failingResizer{err: errors.New("unsupported format")}, bus, nil, entity.ImageNetNormalization(), 3)

	_, err := svc.ClassifyImage(context.Background(), []byte("x"))
	require.ErrorIs(t, err, entity.ErrDecode)
}

func TestClassify_LabelsMismatch(t *testing.T) {
	model := newFakeModel("a", map[string][]float32{"logits": {0, 0, 0, 0, 9}}, "logits")
	svc, _, _ := newTestClassifier(t, model)

	result, err := svc.Classify(context.Background(), grayImage(t), ClassifyOptions{})
	require.NoError(t, err)
	top, ok := result.Top()
	require.True(t, ok)
	require.Equal(t, "cls_4", top.Label)
}

func TestClassify_SilentRefusedDuringReload(t *testing.T) {
	a := newFakeModel("a", map[string][]float32{"prob": {0.2, 0.8}}, "prob")
	b := newFakeModel("b", map[string][]float32{"prob": {0.6, 0.4}}, "prob")
	bus := newRecordingBus()
	manager, loader := newLoadedManager(t, bus, a, b)
	svc := NewClassifierService(manager, passthroughResizer{}, bus, nil, entity.ImageNetNormalization(), 1)

	loader.gate = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- svc.ReloadModel(context.Background()) }()
	require.Eventually(t, func() bool { return !manager.Ready() }, time.Second, 5*time.Millisecond)

	_, err := svc.ClassifyFrame(context.Background(), grayImage(t))
	require.ErrorIs(t, err, entity.ErrSessionNotReady)

	// интерактивный вызов дорабатывает на старой сессии
	result, err := svc.Classify(context.Background(), grayImage(t), ClassifyOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, result.Predictions[0].Index)

	close(loader.gate)
	require.NoError(t, <-done)

	result, err = svc.ClassifyFrame(context.Background(), grayImage(t))
	require.NoError(t, err)
	require.Equal(t, 0, result.Predictions[0].Index)
	require.Equal(t, manager.Current().ID, result.SessionID)
}

func TestClassify_ShapeError(t *testing.T) {
	model := newFakeModel("a", map[string][]float32{"prob": {0.2, 0.8}}, "prob")
	svc, _, _ := newTestClassifier(t, model)

	small := uniformPNG(t, 100, 100, color.NRGBA{A: 255})
	_, err := svc.Classify(context.Background(), small, ClassifyOptions{})
	require.ErrorIs(t, err, entity.ErrShape)
}
