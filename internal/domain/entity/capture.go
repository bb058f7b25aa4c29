package entity

// CaptureState описывает состояние цикла захвата кадров с камеры.
type CaptureState string

const (
	CaptureIdle     CaptureState = "idle"     // камера выключена
	CaptureStarting CaptureState = "starting" // ждём готовности камеры
	CaptureActive   CaptureState = "active"   // кадры классифицируются
	CaptureStopping CaptureState = "stopping" // цикл останавливается
)
