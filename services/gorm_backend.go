package services

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDatabase runs table operations on a postgres connection through gorm.
type GormDatabase struct {
	db *gorm.DB
}

func NewGormDatabase(db *gorm.DB) *GormDatabase {
	return &GormDatabase{db: db}
}

func eq(column string, value any) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: column}, Value: value}
}

func (g *GormDatabase) Select(ctx context.Context, table string, dest any, q Query) error {
	tx := g.db.WithContext(ctx).Table(table)
	for _, f := range q.Filters {
		tx = tx.Where(eq(f.Column, f.Value))
	}
	for _, o := range q.Order {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc})
	}
	return tx.Find(dest).Error
}

func (g *GormDatabase) Insert(ctx context.Context, table string, row any) error {
	return g.db.WithContext(ctx).Table(table).Create(row).Error
}

func (g *GormDatabase) Update(ctx context.Context, table string, fields map[string]any, key string, value any) error {
	res := g.db.WithContext(ctx).Table(table).Where(eq(key, value)).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoRows
	}
	return nil
}

func (g *GormDatabase) Delete(ctx context.Context, table string, key string, value any) error {
	return g.db.WithContext(ctx).
		Exec("DELETE FROM ? WHERE ? = ?", clause.Table{Name: table}, clause.Column{Name: key}, value).
		Error
}

func (g *GormDatabase) Transaction(ctx context.Context, fn func(tx Tables) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormDatabase{db: tx})
	})
}

func (g *GormDatabase) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
