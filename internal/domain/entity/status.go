package entity

import "fmt"

// Status хранит человекочитаемую строку состояния конвейера.
type Status string

const (
	StatusInitializing Status = "Initializing"
	StatusLoadingModel Status = "Loading model"
	StatusReady        Status = "Ready"
	StatusClassifying  Status = "Classifying"

	StatusCameraStarting Status = "Camera starting"
	StatusCameraActive   Status = "Camera active"
	StatusCameraWaiting  Status = "Waiting for camera"
	StatusModelWaiting   Status = "Waiting for model"
	StatusCameraStopped  Status = "Camera stopped"
	StatusCameraError    Status = "Camera: classification error"
)

// ErrorStatus формирует статус "Error: <reason>".
func ErrorStatus(reason string) Status {
	return Status("Error: " + reason)
}

// CameraGuessStatus формирует тихий статус с лучшей догадкой камеры.
func CameraGuessStatus(p Prediction) Status {
	return Status(fmt.Sprintf("Camera: %s %.1f%%", p.Label, p.Probability*100))
}
