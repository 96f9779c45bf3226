package database

import (
	"fmt"
	"strconv"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"staywatch/internal/config"
	"staywatch/internal/store"
)

// OpenMySQL opens a gorm connection against MySQL and verifies it with a ping.
func OpenMySQL(host, port, user, password, dbname string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// OpenStore picks the storage backend from config. MySQL is the default;
// type "postgres" switches to the raw-SQL store.
func OpenStore(cfg *config.DatabaseConfig) (store.Store, error) {
	switch cfg.Type {
	case "postgres":
		pg := cfg.Postgres
		return store.NewPostgresStore(pg.Host, strconv.Itoa(pg.Port), pg.User, pg.Password, pg.Database, pg.SSLMode)
	case "", "mysql":
		my := cfg.MySQL
		db, err := OpenMySQL(my.Host, strconv.Itoa(my.Port), my.User, my.Password, my.Database)
		if err != nil {
			return nil, err
		}
		return store.NewGormStore(db), nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
