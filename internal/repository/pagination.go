package repository

import "gorm.io/gorm"

// maxListPageSize 后台列表单页上限
const maxListPageSize = 500

// applyPagination 按页截取；pageSize<=0 时返回全部，超过上限时截到 maxListPageSize
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if pageSize > maxListPageSize {
		pageSize = maxListPageSize
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}

// pageNewestFirst 账本、推荐与系统日志列表按时间倒序分页，同一时刻按主键倒序保证翻页稳定
func pageNewestFirst(query *gorm.DB, page, pageSize int) *gorm.DB {
	return applyPagination(query, page, pageSize).Order("created_at desc, id desc")
}
