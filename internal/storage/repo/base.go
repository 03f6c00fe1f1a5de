package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Filter 筛选器接口
type Filter interface {
	Apply(db *gorm.DB) *gorm.DB
}

// Pagination 分页参数
type Pagination struct {
	Offset int
	Limit  int
}

// Order 排序参数
type Order struct {
	Field string
	Desc  bool
}

// BaseRepository 基础DAO层
type BaseRepository[T any] struct {
	Db *gorm.DB
}

// NewBaseRepository 创建基础DAO层
func NewBaseRepository[T any](db *gorm.DB) *BaseRepository[T] {
	return &BaseRepository[T]{Db: db}
}

// CreateBatch 批量创建记录
func (r *BaseRepository[T]) CreateBatch(ctx context.Context, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return r.Db.WithContext(ctx).CreateInBatches(items, batchSize).Error
}

// FindAll 按筛选条件查询记录，返回记录与总数
func (r *BaseRepository[T]) FindAll(ctx context.Context, filter Filter, page *Pagination, orders ...Order) ([]T, int64, error) {
	query := r.Db.WithContext(ctx).Model(new(T))
	if filter != nil {
		query = filter.Apply(query)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	for _, o := range orders {
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		query = query.Order(o.Field + dir)
	}
	if page != nil {
		query = query.Offset(page.Offset).Limit(page.Limit)
	}

	list := make([]T, 0)
	if err := query.Find(&list).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, err
	}
	return list, total, nil
}

// DeleteWhere 按筛选条件删除记录，返回删除行数
func (r *BaseRepository[T]) DeleteWhere(ctx context.Context, filter Filter) (int64, error) {
	query := r.Db.WithContext(ctx)
	if filter != nil {
		query = filter.Apply(query)
	} else {
		query = query.Where("1 = 1")
	}
	res := query.Delete(new(T))
	return res.RowsAffected, res.Error
}
