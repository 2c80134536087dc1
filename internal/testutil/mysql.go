//go:build integration

package testutil

import (
	"context"
	"fmt"
	"time"

	"saccoguard/internal/infrastructure/database"

	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MySQLContainer 集成测试用的 MySQL 实例，表结构已迁移
type MySQLContainer struct {
	Container *tcmysql.MySQLContainer
	DB        *gorm.DB
}

// NewMySQLContainer 启动 MySQL 容器并执行 AutoMigrate
// 调用方在测试结束后调用 Terminate
func NewMySQLContainer(ctx context.Context) (*MySQLContainer, error) {
	container, err := tcmysql.Run(ctx,
		"mysql:8.0.36",
		tcmysql.WithDatabase("sacco"),
		tcmysql.WithUsername("sacco"),
		tcmysql.WithPassword("sacco"),
	)
	if err != nil {
		return nil, fmt.Errorf("start mysql container: %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "charset=utf8mb4", "parseTime=True", "loc=Local")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("mysql connection string: %w", err)
	}

	// 与 database.NewMySQL 保持一致的 gorm 配置
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &MySQLContainer{Container: container, DB: db}, nil
}

// Terminate 关闭连接并销毁容器
func (c *MySQLContainer) Terminate() {
	if c.DB != nil {
		_ = database.Close(c.DB)
	}
	if c.Container != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = c.Container.Terminate(ctx)
	}
}
