package repository

import (
	"strings"

	"gorm.io/gorm"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// likeOperatorByDialect 根据方言返回不区分大小写的 LIKE 运算符。
func likeOperatorByDialect(dialect string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
		return "ILIKE"
	default:
		return "LIKE"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike 转义 LIKE 通配符，配合 ESCAPE '\' 使用。
func escapeLike(raw string) string {
	return likeEscaper.Replace(raw)
}

// pathPrefixPattern 物化路径子孙匹配模式（不含自身）。
func pathPrefixPattern(path string) string {
	return escapeLike(strings.TrimSpace(path)) + ".%"
}
