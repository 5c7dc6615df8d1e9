//go:build !unix

package storage

// На Windows MoveFile сам переносит файл между томами
func isEXDEV(error) bool { return false }
