/*
 * @module KafkaConnector
 * @description Kafka连接器，封装第三方Kafka客户端，将流水线事件广播到Kafka主题
 * @architecture 适配器模式 - 封装第三方Kafka客户端，提供统一的接口
 * @documentReference ai_docs/greenroute_event_impl.md
 * @stateFlow 连接建立 -> 事件发送 -> 连接断开
 * @rules 发送失败只计数不重试，事件广播不阻塞流水线
 * @dependencies github.com/segmentio/kafka-go, encoding/json
 * @refs service/event/event_service.go, service/models/connector_models.go
 */
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"greenroute-service/service/models"
)

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// KafkaConnector Kafka连接器结构体
type KafkaConnector struct {
	config      *models.KafkaConfig
	writers     map[string]*kafka.Writer // 按topic分组的生产者
	stats       models.ConnectorStatistics
	mutex       sync.RWMutex
	logger      *log.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	isConnected bool
}

// NewKafkaConnector 创建新的Kafka连接器
func NewKafkaConnector(config *models.KafkaConfig, logger *log.Logger) *KafkaConnector {
	ctx, cancel := context.WithCancel(context.Background())

	if logger == nil {
		logger = log.Default()
	}

	return &KafkaConnector{
		config:      config,
		writers:     make(map[string]*kafka.Writer),
		stats:       models.ConnectorStatistics{ConnectorType: "kafka", ConnectionStatus: "disconnected"},
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		isConnected: false,
	}
}

// NewKafkaConnectorFromEnv 从环境变量构建Kafka连接器，未配置broker时返回nil
func NewKafkaConnectorFromEnv(logger *log.Logger) *KafkaConnector {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return nil
	}

	config := &models.KafkaConfig{
		Brokers:           strings.Split(brokers, ","),
		Topics:            []string{getEnvWithDefault("KAFKA_EVENT_TOPIC", "greenroute.pipeline.events")},
		ConnectionTimeout: 10 * time.Second,
		RetryAttempts:     3,
		RequiredAcks:      1,
	}

	return NewKafkaConnector(config, logger)
}

// Connect 建立Kafka连接
func (kc *KafkaConnector) Connect() error {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()

	if kc.isConnected {
		return nil
	}

	// 初始化生产者
	for _, topic := range kc.config.Topics {
		writer := &kafka.Writer{
			Addr:         kafka.TCP(kc.config.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequiredAcks(kc.config.RequiredAcks),
		}

		if kc.config.BatchSize > 0 {
			writer.BatchSize = kc.config.BatchSize
		}
		if kc.config.BatchTimeout > 0 {
			writer.BatchTimeout = kc.config.BatchTimeout
		}

		kc.writers[topic] = writer
	}

	kc.isConnected = true
	kc.stats.ConnectionStatus = "connected"
	kc.logger.Printf("Kafka连接器已连接到brokers: %v", kc.config.Brokers)
	return nil
}

// Disconnect 断开Kafka连接
func (kc *KafkaConnector) Disconnect() error {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()

	if !kc.isConnected {
		return nil
	}

	// 关闭所有生产者
	for topic, writer := range kc.writers {
		if err := writer.Close(); err != nil {
			kc.logger.Printf("关闭生产者失败 topic=%s: %v", topic, err)
		}
	}

	kc.cancel()
	kc.isConnected = false
	kc.stats.ConnectionStatus = "disconnected"
	kc.logger.Println("Kafka连接器已断开连接")
	return nil
}

// Name 发布器名称
func (kc *KafkaConnector) Name() string {
	return "kafka"
}

// PublishEvent 将流水线事件发送到事件主题
func (kc *KafkaConnector) PublishEvent(ctx context.Context, event *models.PipelineEvent) error {
	if len(kc.config.Topics) == 0 {
		return fmt.Errorf("未配置事件主题")
	}

	message := &models.KafkaMessage{
		Topic:     kc.config.Topics[0],
		Key:       event.DatasetID,
		Value:     event,
		Headers:   map[string]string{"event_type": event.EventType},
		Timestamp: event.CreatedAt,
	}

	return kc.produceMessage(ctx, message)
}

// ProduceMessage 发送消息
func (kc *KafkaConnector) ProduceMessage(message *models.KafkaMessage) error {
	ctx, cancel := context.WithTimeout(kc.ctx, kc.config.ConnectionTimeout)
	defer cancel()
	return kc.produceMessage(ctx, message)
}

// produceMessage 发送消息到指定topic
func (kc *KafkaConnector) produceMessage(ctx context.Context, message *models.KafkaMessage) error {
	kc.mutex.RLock()
	writer, exists := kc.writers[message.Topic]
	kc.mutex.RUnlock()

	if !exists {
		return fmt.Errorf("找不到topic的生产者: %s", message.Topic)
	}

	// 序列化消息值
	valueBytes, err := kc.serializeValue(message.Value)
	if err != nil {
		kc.recordError(err)
		return fmt.Errorf("序列化消息值失败: %v", err)
	}

	// 构建Kafka消息
	kafkaMsg := kafka.Message{
		Key:   []byte(message.Key),
		Value: valueBytes,
		Time:  message.Timestamp,
	}

	// 添加消息头
	if message.Headers != nil {
		for key, value := range message.Headers {
			kafkaMsg.Headers = append(kafkaMsg.Headers, kafka.Header{
				Key:   key,
				Value: []byte(value),
			})
		}
	}

	if err := writer.WriteMessages(ctx, kafkaMsg); err != nil {
		kc.recordError(err)
		return fmt.Errorf("发送消息失败: %v", err)
	}

	kc.mutex.Lock()
	kc.stats.MessagesProduced++
	kc.stats.LastActivity = time.Now()
	kc.mutex.Unlock()

	return nil
}

// serializeValue 序列化消息值
func (kc *KafkaConnector) serializeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}

// recordError 记录发送错误
func (kc *KafkaConnector) recordError(err error) {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()

	kc.stats.ErrorCount++
	kc.stats.LastError = err.Error()
	kc.stats.LastActivity = time.Now()
}

// IsConnected 检查连接状态
func (kc *KafkaConnector) IsConnected() bool {
	kc.mutex.RLock()
	defer kc.mutex.RUnlock()
	return kc.isConnected
}

// GetStatistics 获取连接器统计信息
func (kc *KafkaConnector) GetStatistics() models.ConnectorStatistics {
	kc.mutex.RLock()
	defer kc.mutex.RUnlock()
	return kc.stats
}
