package entity

import "fmt"

// NormalizationParams задаёт поканальную нормализацию входа.
type NormalizationParams struct {
	Mean   [3]float32
	Std    [3]float32
	SwapRB bool // модель обучалась в BGR
}

// ImageNetNormalization возвращает стандартные параметры ImageNet в порядке RGB.
func ImageNetNormalization() NormalizationParams {
	return NormalizationParams{
		Mean: [3]float32{0.485, 0.456, 0.406},
		Std:  [3]float32{0.229, 0.224, 0.225},
	}
}

// Validate проверяет, что деление на std определено.
func (p NormalizationParams) Validate() error {
	for c, s := range p.Std {
		if !(s > 0) {
			return fmt.Errorf("std[%d] must be positive, got %v", c, s)
		}
	}
	return nil
}
