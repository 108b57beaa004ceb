package repository

import "github.com/Masterminds/squirrel"

// unchangedSince 生成 "column = prior OR column = value" 谓词，nil 值生成 IS NULL
// 用于条件更新：只有当库中值仍为页面加载时的值（或已是目标值）时才写入
func unchangedSince(column string, prior, value interface{}) (string, []interface{}, error) {
	return squirrel.Or{
		squirrel.Eq{column: prior},
		squirrel.Eq{column: value},
	}.ToSql()
}

// nullableFloat 将 *float64 展开为 squirrel 可识别的值（nil 为无类型 nil）
func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// nullableString 同上，针对 *string
func nullableString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
