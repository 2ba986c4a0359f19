package repo

import (
	"fmt"

	"gorm.io/gorm"
)

// Date-part and text helpers that differ between SQLite and PostgreSQL.
// Column names passed in are trusted identifiers, never user input.

func isPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

func monthExpr(db *gorm.DB, col string) string {
	if isPostgres(db) {
		return fmt.Sprintf("CAST(EXTRACT(MONTH FROM %s) AS INTEGER)", col)
	}
	return fmt.Sprintf("CAST(strftime('%%m', %s) AS INTEGER)", col)
}

func yearExpr(db *gorm.DB, col string) string {
	if isPostgres(db) {
		return fmt.Sprintf("CAST(EXTRACT(YEAR FROM %s) AS INTEGER)", col)
	}
	return fmt.Sprintf("CAST(strftime('%%Y', %s) AS INTEGER)", col)
}

func dayOfMonthExpr(db *gorm.DB, col string) string {
	if isPostgres(db) {
		return fmt.Sprintf("CAST(EXTRACT(DAY FROM %s) AS INTEGER)", col)
	}
	return fmt.Sprintf("CAST(strftime('%%d', %s) AS INTEGER)", col)
}

// dateExpr renders col as a YYYY-MM-DD string.
func dateExpr(db *gorm.DB, col string) string {
	if isPostgres(db) {
		return fmt.Sprintf("to_char(%s, 'YYYY-MM-DD')", col)
	}
	return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", col)
}

// likeOp is the case-insensitive pattern operator. SQLite's LIKE already
// folds ASCII case.
func likeOp(db *gorm.DB) string {
	if isPostgres(db) {
		return "ILIKE"
	}
	return "LIKE"
}

func likePattern(s string) string {
	return "%" + s + "%"
}
