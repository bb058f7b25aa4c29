package entity

import "strconv"

// Labels — имена классов, выровненные по индексу выхода модели.
type Labels []string

// Label возвращает имя класса или "cls_<i>", если имени нет.
func (l Labels) Label(i int) string {
	if i >= 0 && i < len(l) {
		return l[i]
	}
	return "cls_" + strconv.Itoa(i)
}
