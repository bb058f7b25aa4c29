package onnx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"vision-classifier/internal/domain/entity"
)

// Stage кладёт модель и её внешние веса в один каталог и возвращает путь к модели.
// ONNX Runtime ищет файл весов рядом с моделью, поэтому они копируются вместе.
// Без StagingDir модель читается на месте.
func Stage(src entity.ModelSource) (string, error) {
	if src.Path == "" {
		return "", fmt.Errorf("model path is empty")
	}
	if _, err := os.Stat(src.Path); err != nil {
		return "", fmt.Errorf("model file: %w", err)
	}
	if src.StagingDir == "" {
		return src.Path, nil
	}

	if err := os.MkdirAll(src.StagingDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	dst := filepath.Join(src.StagingDir, filepath.Base(src.Path))
	if err := copyFile(src.Path, dst); err != nil {
		return "", fmt.Errorf("stage model: %w", err)
	}

	if src.ExternalDataPath != "" {
		dataDst := filepath.Join(src.StagingDir, filepath.Base(src.ExternalDataPath))
		if err := copyFile(src.ExternalDataPath, dataDst); err != nil {
			return "", fmt.Errorf("stage external data: %w", err)
		}
	}

	return dst, nil
}

// copyFile пишет во временный файл и переименовывает, чтобы не оставить обрезанную копию.
func copyFile(from, to string) error {
	if same, err := sameFile(from, to); err != nil || same {
		return err
	}

	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(to), ".stage-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), to)
}

func sameFile(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return os.SameFile(ai, bi), nil
}
