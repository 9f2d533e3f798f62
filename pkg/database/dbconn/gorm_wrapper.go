package dbconn

import "gorm.io/gorm"

// GormWrapper is the subset of gorm's chain API the repositories use.
type GormWrapper interface {
	Error() error
	AutoMigrate(...interface{}) error
	Create(interface{}) GormWrapper
	Model(interface{}) GormWrapper
	Where(interface{}, ...interface{}) GormWrapper
	Updates(interface{}) GormWrapper
	Order(interface{}) GormWrapper
	Limit(int) GormWrapper
	Find(interface{}, ...interface{}) GormWrapper
	First(interface{}, ...interface{}) GormWrapper
}

type wrapper struct {
	db *gorm.DB
}

func Wrap(db *gorm.DB) GormWrapper {
	return &wrapper{
		db: db,
	}
}

func (w *wrapper) Error() error {
	return w.db.Error
}

func (w *wrapper) AutoMigrate(dst ...interface{}) error {
	return w.db.AutoMigrate(dst...)
}

func (w *wrapper) Create(value interface{}) GormWrapper {
	return Wrap(w.db.Create(value))
}

func (w *wrapper) Model(value interface{}) GormWrapper {
	return Wrap(w.db.Model(value))
}

func (w *wrapper) Where(query interface{}, args ...interface{}) GormWrapper {
	return Wrap(w.db.Where(query, args...))
}

func (w *wrapper) Updates(values interface{}) GormWrapper {
	return Wrap(w.db.Updates(values))
}

func (w *wrapper) Order(value interface{}) GormWrapper {
	return Wrap(w.db.Order(value))
}

func (w *wrapper) Limit(limit int) GormWrapper {
	return Wrap(w.db.Limit(limit))
}

func (w *wrapper) Find(dest interface{}, conds ...interface{}) GormWrapper {
	return Wrap(w.db.Find(dest, conds...))
}

func (w *wrapper) First(dest interface{}, conds ...interface{}) GormWrapper {
	return Wrap(w.db.First(dest, conds...))
}
