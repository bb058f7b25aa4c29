package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vision-classifier/internal/domain/entity"
)

// LoadLabels читает подписи классов: JSON-массив строк для .json,
// иначе по одной подписи на строку. Пустые строки пропускаются.
func LoadLabels(path string) (entity.Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var labels []string
		if err := json.Unmarshal(data, &labels); err != nil {
			return nil, fmt.Errorf("parse labels %s: %w", path, err)
		}
		return entity.Labels(labels), nil
	}

	var labels entity.Labels
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse labels %s: %w", path, err)
	}
	return labels, nil
}
