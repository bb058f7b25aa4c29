package entity

// ModelSource описывает, откуда загружать модель.
type ModelSource struct {
	Path             string // основной файл модели
	ExternalDataPath string // файл внешних весов рядом с моделью, может быть пустым
	StagingDir       string // каталог, куда оба файла копируются перед загрузкой
}

// TensorInfo хранит объявленное имя и форму входа или выхода модели.
type TensorInfo struct {
	Name  string
	Shape []int64
}
