package game

import "errors"

var (
	ErrFloorNotFound  = errors.New("floor not found")
	ErrDuplicateFloor = errors.New("floor already exists")
)
