/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、配置加载等初始化工作
 * @architecture 分层架构 - 服务层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 应用入口显式调用Init执行初始化流程
 * @rules 确保所有依赖服务正常启动后才提供API服务；初始化不挂在包级init上，
 *        测试包仅依赖SQLite内存库
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs dev_docs/model.md
 */

package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"greenroute-service/client/connectors"
	"greenroute-service/service/cache"
	"greenroute-service/service/cleanup"
	"greenroute-service/service/config"
	"greenroute-service/service/database"
	"greenroute-service/service/distributed_lock"
	"greenroute-service/service/event"
	"greenroute-service/service/loader"
	"greenroute-service/service/monitoring"
	"greenroute-service/service/scheduler"
)

var (
	DB                     *gorm.DB
	GlobalEventService     *event.EventService
	GlobalConfigService    *config.ConfigService
	GlobalResultCache      cache.ResultCache
	GlobalPipelineService  *PipelineService
	GlobalDatasetService   *DatasetService
	GlobalApiKeyService    *ApiKeyService
	GlobalRefreshScheduler *scheduler.RefreshScheduler
	GlobalCleanupService   *cleanup.RunCleanupService
	GlobalHealthChecker    *monitoring.HealthChecker
)

// Init 建立数据库连接、执行迁移并装配全部业务服务，必须在挂载路由前由入口调用
// 不放在包级init中执行，测试包可以只依赖SQLite内存库而不要求Postgres在线
func Init() {
	initDatabase()
	runMigrations()
	initServices()
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var dsn string

	// 优先使用DATABASE_URL环境变量
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dsn = databaseURL
	} else {
		// 使用分离的环境变量构建连接字符串
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "things2024")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
		schema := getEnvWithDefault("DB_SCHEMA", "public")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Shanghai",
			host, port, user, password, dbname, sslmode, schema)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	log.Println("数据库连接成功")
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runMigrations 运行数据库迁移
func runMigrations() {
	log.Println("开始运行数据库迁移...")

	if err := database.AutoMigrate(DB); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	log.Println("数据库表结构迁移完成")

	if err := database.InitializeData(DB); err != nil {
		log.Fatalf("基础数据初始化失败: %v", err)
	}
	log.Println("基础数据初始化完成")

	if err := database.AutoMigrateView(DB); err != nil {
		log.Fatalf("视图迁移失败: %v", err)
	}
	log.Println("视图迁移完成")

	log.Println("所有数据库迁移任务完成")
}

// initServices 初始化服务
func initServices() {
	// 初始化配置服务和结果缓存
	GlobalConfigService = config.NewConfigService(DB)
	GlobalResultCache = cache.NewResultCache()

	// 初始化事件服务并注册外部发布器
	GlobalEventService = event.NewEventService(DB)
	registerEventPublishers()

	// 初始化业务服务
	GlobalDatasetService = NewDatasetService(DB)
	GlobalApiKeyService = NewApiKeyService(DB)
	GlobalPipelineService = NewPipelineService(DB, GlobalResultCache, GlobalEventService, GlobalConfigService)

	// 初始化分布式锁，Redis不可用时调度器退化为单实例模式
	var lockExecutor *distributed_lock.LockExecutor
	if redisLock, err := distributed_lock.NewRedisLock(); err != nil {
		log.Printf("Redis分布式锁不可用，调度任务以单实例模式运行: %v", err)
	} else {
		lockExecutor = distributed_lock.NewLockExecutor(redisLock)
	}

	// 初始化刷新调度器
	maxWorkers, _ := strconv.Atoi(getEnvWithDefault("SCHEDULER_MAX_WORKERS", "2"))
	GlobalRefreshScheduler = scheduler.NewRefreshScheduler(
		DB, loader.NewFingerprinter(), GlobalPipelineService,
		GlobalEventService, GlobalConfigService, lockExecutor, maxWorkers)
	if err := GlobalRefreshScheduler.Start(); err != nil {
		log.Printf("启动刷新调度器失败: %v", err)
	}

	// 初始化记录清理服务
	GlobalCleanupService = cleanup.NewRunCleanupService(DB, GlobalConfigService, lockExecutor)
	if err := GlobalCleanupService.StartScheduledCleanup(); err != nil {
		log.Printf("启动记录清理服务失败: %v", err)
	}

	// 初始化健康检查器
	GlobalHealthChecker = monitoring.NewHealthChecker(DB)
	GlobalHealthChecker.RegisterCheck("result_cache", func(ctx context.Context) error {
		return GlobalResultCache.Ping(ctx)
	})

	// 确保默认数据集存在
	ensureDefaultDataset()

	log.Println("服务初始化完成")
}

// registerEventPublishers 按环境变量注册Kafka和MQTT事件发布器
func registerEventPublishers() {
	if kafkaConnector := connectors.NewKafkaConnectorFromEnv(nil); kafkaConnector != nil {
		if err := kafkaConnector.Connect(); err != nil {
			log.Printf("Kafka连接器初始化失败: %v", err)
		} else {
			GlobalEventService.RegisterPublisher(kafkaConnector)
		}
	}

	if mqttConnector := connectors.NewMQTTConnectorFromEnv(nil); mqttConnector != nil {
		if err := mqttConnector.Connect(); err != nil {
			log.Printf("MQTT连接器初始化失败: %v", err)
		} else {
			GlobalEventService.RegisterPublisher(mqttConnector)
		}
	}
}

// ensureDefaultDataset 初始化默认数据集
func ensureDefaultDataset() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	baseDir := getEnvWithDefault("DATA_DIR", "./data")
	dataset, err := GlobalDatasetService.EnsureDefaultDataset(ctx, baseDir)
	if err != nil {
		log.Printf("初始化默认数据集失败: %v", err)
		return
	}

	log.Printf("默认数据集就绪: ID=%s, 数据目录=%s", dataset.ID, dataset.BaseDir)
}
