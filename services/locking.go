package services

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockForUpdate добавляет блокировку строки SELECT ... FOR UPDATE.
// SQLite (используется в тестах) не поддерживает этот синтаксис и
// сериализует запись на уровне файла, поэтому блокировка применяется
// только для PostgreSQL.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
