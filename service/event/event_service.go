/*
 * @module service/event_service
 * @description 事件管理服务，提供流水线事件的SSE推送、外部广播和数据库变更监听功能
 * @architecture 事件驱动架构 - 业务服务层
 * @documentReference ai_docs/greenroute_event_impl.md
 * @stateFlow 事件产生 -> 持久化 -> SSE推送/外部广播 -> 标记已发送
 * @rules 推送失败不阻塞流水线执行，队列满时丢弃事件
 * @dependencies greenroute-service/service/models, gorm.io/gorm, github.com/lib/pq
 * @refs service/pipeline_service.go, api/controllers/event_controller.go
 */

package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"greenroute-service/service/models"
	"greenroute-service/service/monitoring"
)

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// EventPublisher 对外事件发布器，由消息连接器实现
type EventPublisher interface {
	Name() string
	PublishEvent(ctx context.Context, event *models.PipelineEvent) error
}

// EventService 事件管理服务
type EventService struct {
	db          *gorm.DB
	connections map[string]*SSEClient // connectionID -> client
	publishers  []EventPublisher
	mu          sync.RWMutex
	dbListener  *pq.Listener
	ctx         context.Context
	cancel      context.CancelFunc
}

// SSEClient SSE客户端连接
type SSEClient struct {
	ID          string
	ClientIP    string
	ConnectedAt time.Time
	Channel     chan *models.PipelineEvent
	Done        chan bool
}

// NewEventService 创建事件服务实例
func NewEventService(db *gorm.DB) *EventService {
	ctx, cancel := context.WithCancel(context.Background())

	service := &EventService{
		db:          db,
		connections: make(map[string]*SSEClient),
		publishers:  make([]EventPublisher, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	// 启动连接清理器
	go service.startConnectionJanitor()

	// 数据库变更桥接默认关闭，本地SQLite环境无法监听
	if getEnvWithDefault("EVENT_DB_BRIDGE_ENABLED", "false") == "true" {
		go service.startDBChangeBridge()
	}

	return service
}

// RegisterPublisher 注册对外事件发布器
func (s *EventService) RegisterPublisher(publisher EventPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.publishers = append(s.publishers, publisher)
	log.Printf("事件发布器已注册: %s", publisher.Name())
}

// === SSE连接管理 ===

// AddSSEConnection 添加SSE连接
func (s *EventService) AddSSEConnection(connectionID, clientIP string) *SSEClient {
	s.mu.Lock()
	defer s.mu.Unlock()

	client := &SSEClient{
		ID:          connectionID,
		ClientIP:    clientIP,
		ConnectedAt: time.Now(),
		Channel:     make(chan *models.PipelineEvent, 100), // 缓冲100个事件
		Done:        make(chan bool),
	}

	s.connections[connectionID] = client
	monitoring.SetSSEConnections(len(s.connections))

	log.Printf("SSE连接已建立: 连接ID=%s, IP=%s", connectionID, clientIP)
	return client
}

// RemoveSSEConnection 移除SSE连接
func (s *EventService) RemoveSSEConnection(connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, exists := s.connections[connectionID]; exists {
		close(client.Done)
		delete(s.connections, connectionID)
		monitoring.SetSSEConnections(len(s.connections))
		log.Printf("SSE连接已断开: 连接ID=%s", connectionID)
	}
}

// ConnectionCount 当前活跃SSE连接数
func (s *EventService) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// === 事件发布 ===

// PublishRunStarted 发布运行开始事件
func (s *EventService) PublishRunStarted(datasetID, runID, triggerType string) error {
	return s.publish(&models.PipelineEvent{
		EventType: models.EventTypeRunStarted,
		DatasetID: datasetID,
		RunID:     runID,
		Data:      models.JSONB{"trigger_type": triggerType},
	})
}

// PublishRunSucceeded 发布运行成功事件
func (s *EventService) PublishRunSucceeded(datasetID, runID string, rowCount, columnCount int, durationMs int64) error {
	return s.publish(&models.PipelineEvent{
		EventType: models.EventTypeRunSucceeded,
		DatasetID: datasetID,
		RunID:     runID,
		Data: models.JSONB{
			"row_count":    rowCount,
			"column_count": columnCount,
			"duration_ms":  durationMs,
		},
	})
}

// PublishRunFailed 发布运行失败事件
func (s *EventService) PublishRunFailed(datasetID, runID, errorCode, errorMessage string) error {
	return s.publish(&models.PipelineEvent{
		EventType: models.EventTypeRunFailed,
		DatasetID: datasetID,
		RunID:     runID,
		Data: models.JSONB{
			"error_code":    errorCode,
			"error_message": errorMessage,
		},
	})
}

// PublishCacheInvalidated 发布缓存失效事件
func (s *EventService) PublishCacheInvalidated(datasetID string) error {
	return s.publish(&models.PipelineEvent{
		EventType: models.EventTypeCacheInvalidated,
		DatasetID: datasetID,
	})
}

// PublishSourceChanged 发布数据源变更事件
func (s *EventService) PublishSourceChanged(datasetID, fingerprint string) error {
	return s.publish(&models.PipelineEvent{
		EventType: models.EventTypeSourceChanged,
		DatasetID: datasetID,
		Data:      models.JSONB{"fingerprint": fingerprint},
	})
}

// publish 持久化事件并分发
func (s *EventService) publish(event *models.PipelineEvent) error {
	// 保存事件到数据库
	if err := s.db.Create(event).Error; err != nil {
		log.Printf("保存流水线事件失败: %v", err)
		return err
	}

	s.fanOut(event)

	// 标记已发送
	event.MarkSent()
	if err := s.db.Model(&models.PipelineEvent{}).
		Where("id = ?", event.ID).
		Updates(map[string]interface{}{"sent": event.Sent, "sent_at": event.SentAt}).Error; err != nil {
		log.Printf("更新事件发送状态失败: %v", err)
	}

	return nil
}

// fanOut 将事件分发到所有SSE连接和外部发布器
func (s *EventService) fanOut(event *models.PipelineEvent) {
	s.mu.RLock()
	clients := make([]*SSEClient, 0, len(s.connections))
	for _, client := range s.connections {
		clients = append(clients, client)
	}
	publishers := make([]EventPublisher, len(s.publishers))
	copy(publishers, s.publishers)
	s.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Channel <- event:
		default:
			log.Printf("连接 %s 事件队列已满，跳过推送: %s", client.ID, event.EventType)
		}
	}

	for _, publisher := range publishers {
		ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
		if err := publisher.PublishEvent(ctx, event); err != nil {
			log.Printf("发布器 %s 推送事件失败: %v", publisher.Name(), err)
		}
		cancel()
	}
}

// ListEvents 分页查询事件历史
func (s *EventService) ListEvents(page, pageSize int, datasetID, eventType string) ([]models.PipelineEvent, int64, error) {
	var events []models.PipelineEvent
	var total int64

	query := s.db.Model(&models.PipelineEvent{})

	// 添加过滤条件
	if datasetID != "" {
		query = query.Where("dataset_id = ?", datasetID)
	}
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}

	// 获取总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询
	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").
		Offset(offset).Limit(pageSize).Find(&events).Error

	return events, total, err
}

// === 数据库变更桥接 ===

// startDBChangeBridge 启动数据库变更监听器
func (s *EventService) startDBChangeBridge() {
	// 获取数据库连接信息
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		// 从环境变量构建连接字符串
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "things2024")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")

		connStr = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}

	// 确保通知函数和触发器存在
	if err := s.ensureDatasetTrigger(); err != nil {
		log.Printf("创建数据集变更触发器失败: %v", err)
		return
	}

	// 创建PostgreSQL监听器
	s.dbListener = pq.NewListener(connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("PostgreSQL监听器事件: %v, 错误: %v", ev, err)
		}
	})

	// 监听数据库通知
	if err := s.dbListener.Listen("greenroute_changes"); err != nil {
		log.Printf("监听数据库通知失败: %v", err)
		return
	}

	log.Println("数据库变更监听器已启动")

	// 处理数据库通知
	for {
		select {
		case notification := <-s.dbListener.Notify:
			if notification != nil {
				s.handleDBNotification(notification)
			}
		case <-s.ctx.Done():
			log.Println("数据库变更监听器已停止")
			return
		}
	}
}

// handleDBNotification 处理数据库通知
func (s *EventService) handleDBNotification(notification *pq.Notification) {
	var changeData map[string]interface{}
	if err := json.Unmarshal([]byte(notification.Extra), &changeData); err != nil {
		log.Printf("解析数据库通知失败: %v", err)
		return
	}

	tableName, _ := changeData["table"].(string)
	changeType, _ := changeData["type"].(string)
	recordID, _ := changeData["record_id"].(string)

	log.Printf("收到数据库变更通知: 表=%s, 类型=%s, 记录ID=%s", tableName, changeType, recordID)

	if tableName != "datasets" {
		return
	}

	// 桥接事件只广播不持久化，避免与源变更写入形成循环
	s.fanOut(&models.PipelineEvent{
		ID:        uuid.New().String(),
		EventType: models.EventTypeDatasetChanged,
		DatasetID: recordID,
		Data: models.JSONB{
			"table":       tableName,
			"change_type": changeType,
		},
		CreatedAt: time.Now(),
		CreatedBy: "db_bridge",
	})
}

// ensureDatasetTrigger 确保数据集表的通知函数和触发器存在
func (s *EventService) ensureDatasetTrigger() error {
	createFunctionSQL := `
CREATE OR REPLACE FUNCTION notify_greenroute_changes()
RETURNS TRIGGER AS $$
DECLARE
    record_id TEXT;
    payload JSON;
BEGIN
    IF TG_OP = 'DELETE' THEN
        record_id := OLD.id;
    ELSE
        record_id := NEW.id;
    END IF;

    payload := json_build_object(
        'table', TG_TABLE_NAME,
        'type', TG_OP,
        'record_id', record_id,
        'timestamp', extract(epoch from now())
    );

    PERFORM pg_notify('greenroute_changes', payload::text);

    IF TG_OP = 'DELETE' THEN
        RETURN OLD;
    ELSE
        RETURN NEW;
    END IF;
END;
$$ LANGUAGE plpgsql;`

	if err := s.db.Exec(createFunctionSQL).Error; err != nil {
		return fmt.Errorf("执行创建函数SQL失败: %v", err)
	}

	createTriggerSQL := `
CREATE OR REPLACE TRIGGER datasets_notify
BEFORE INSERT OR UPDATE OR DELETE ON datasets
FOR EACH ROW
EXECUTE FUNCTION notify_greenroute_changes();`

	if err := s.db.Exec(createTriggerSQL).Error; err != nil {
		return fmt.Errorf("执行创建触发器SQL失败: %v", err)
	}

	log.Println("数据集变更触发器 datasets_notify 已就绪")
	return nil
}

// === 连接清理 ===

// startConnectionJanitor 周期清理已断开的连接
func (s *EventService) startConnectionJanitor() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupClosedConnections()
		case <-s.ctx.Done():
			log.Println("连接清理器已停止")
			return
		}
	}
}

// cleanupClosedConnections 清理已关闭的连接
func (s *EventService) cleanupClosedConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for connectionID, client := range s.connections {
		select {
		case <-client.Done:
			delete(s.connections, connectionID)
			log.Printf("清理已断开的连接: 连接ID=%s", connectionID)
		default:
			// 连接仍然活跃
		}
	}
	monitoring.SetSSEConnections(len(s.connections))
}

// Stop 停止事件服务
func (s *EventService) Stop() {
	s.cancel()

	if s.dbListener != nil {
		s.dbListener.Close()
	}

	// 关闭所有SSE连接
	s.mu.Lock()
	for _, client := range s.connections {
		close(client.Done)
	}
	s.connections = make(map[string]*SSEClient)
	monitoring.SetSSEConnections(0)
	s.mu.Unlock()

	log.Println("事件服务已停止")
}
