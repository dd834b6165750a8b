/*
 * @module MQTTConnector
 * @description MQTT连接器，封装第三方MQTT客户端，将流水线事件发布到MQTT主题
 * @architecture 适配器模式 - 封装第三方MQTT客户端，提供统一的接口
 * @documentReference ai_docs/greenroute_event_impl.md
 * @stateFlow 连接建立 -> 事件发布 -> 连接断开
 * @rules 支持自动重连、QoS控制，发布失败只计数不重试
 * @dependencies github.com/eclipse/paho.mqtt.golang, encoding/json
 * @refs service/event/event_service.go, service/models/connector_models.go
 */
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"greenroute-service/service/models"
)

// MQTTConnector MQTT连接器结构体
type MQTTConnector struct {
	config        *models.MQTTConfig
	client        mqtt.Client
	logger        *log.Logger
	stats         models.ConnectorStatistics
	mutex         sync.RWMutex
	isConnected   bool
	reconnectChan chan bool
}

// NewMQTTConnector 创建新的MQTT连接器
func NewMQTTConnector(config *models.MQTTConfig, logger *log.Logger) *MQTTConnector {
	if logger == nil {
		logger = log.Default()
	}

	connector := &MQTTConnector{
		config:        config,
		logger:        logger,
		stats:         models.ConnectorStatistics{ConnectorType: "mqtt", ConnectionStatus: "disconnected"},
		isConnected:   false,
		reconnectChan: make(chan bool, 1),
	}

	// 配置MQTT客户端选项
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)

	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}

	opts.SetCleanSession(config.CleanSession)
	opts.SetKeepAlive(config.KeepAlive)
	opts.SetAutoReconnect(config.AutoReconnect)
	if config.MaxReconnectInterval > 0 {
		opts.SetMaxReconnectInterval(config.MaxReconnectInterval)
	}

	// 设置连接处理器
	opts.SetOnConnectHandler(connector.onConnected)
	opts.SetConnectionLostHandler(connector.onConnectionLost)

	connector.client = mqtt.NewClient(opts)
	return connector
}

// NewMQTTConnectorFromEnv 从环境变量构建MQTT连接器，未配置broker时返回nil
func NewMQTTConnectorFromEnv(logger *log.Logger) *MQTTConnector {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		return nil
	}

	config := &models.MQTTConfig{
		Broker:               broker,
		ClientID:             getEnvWithDefault("MQTT_CLIENT_ID", "greenroute-service"),
		Username:             os.Getenv("MQTT_USERNAME"),
		Password:             os.Getenv("MQTT_PASSWORD"),
		CleanSession:         true,
		KeepAlive:            30 * time.Second,
		Topics:               []string{getEnvWithDefault("MQTT_EVENT_TOPIC", "greenroute/pipeline/events")},
		QoS:                  1,
		AutoReconnect:        true,
		MaxReconnectInterval: time.Minute,
	}

	return NewMQTTConnector(config, logger)
}

// Connect 建立MQTT连接
func (mc *MQTTConnector) Connect() error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if mc.isConnected {
		return nil
	}

	mc.logger.Printf("正在连接MQTT broker: %s", mc.config.Broker)

	// 连接到MQTT broker
	if token := mc.client.Connect(); token.Wait() && token.Error() != nil {
		mc.recordErrorLocked(fmt.Sprintf("MQTT连接失败: %v", token.Error()))
		return fmt.Errorf("MQTT连接失败: %v", token.Error())
	}

	mc.isConnected = true
	mc.stats.ConnectionStatus = "connected"
	mc.logger.Printf("MQTT连接器已连接到broker: %s", mc.config.Broker)
	return nil
}

// Disconnect 断开MQTT连接
func (mc *MQTTConnector) Disconnect() error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if !mc.isConnected {
		return nil
	}

	mc.logger.Println("正在断开MQTT连接...")

	// 等待250ms让消息发送完成
	mc.client.Disconnect(250)

	mc.isConnected = false
	mc.stats.ConnectionStatus = "disconnected"
	mc.logger.Println("MQTT连接器已断开连接")

	return nil
}

// Name 发布器名称
func (mc *MQTTConnector) Name() string {
	return "mqtt"
}

// PublishEvent 将流水线事件发布到事件主题
func (mc *MQTTConnector) PublishEvent(_ context.Context, event *models.PipelineEvent) error {
	if len(mc.config.Topics) == 0 {
		return fmt.Errorf("未配置事件主题")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %v", err)
	}

	return mc.Publish(&models.MQTTMessage{
		Topic:     mc.config.Topics[0],
		Payload:   payload,
		QoS:       mc.config.QoS,
		Timestamp: event.CreatedAt,
	})
}

// Publish 发布消息
func (mc *MQTTConnector) Publish(message *models.MQTTMessage) error {
	mc.mutex.RLock()
	isConnected := mc.isConnected
	mc.mutex.RUnlock()

	if !isConnected {
		return fmt.Errorf("MQTT客户端未连接")
	}

	// 发布消息
	token := mc.client.Publish(message.Topic, message.QoS, message.Retained, message.Payload)
	if token.Wait() && token.Error() != nil {
		mc.mutex.Lock()
		mc.recordErrorLocked(fmt.Sprintf("发布消息失败: %v", token.Error()))
		mc.mutex.Unlock()
		return fmt.Errorf("发布消息失败: %v", token.Error())
	}

	// 更新统计信息
	mc.mutex.Lock()
	mc.stats.MessagesProduced++
	mc.stats.LastActivity = time.Now()
	mc.mutex.Unlock()

	return nil
}

// onConnected 连接建立处理器
func (mc *MQTTConnector) onConnected(client mqtt.Client) {
	mc.mutex.Lock()
	mc.isConnected = true
	mc.stats.ConnectionStatus = "connected"
	mc.mutex.Unlock()

	mc.logger.Printf("MQTT连接已建立")
}

// onConnectionLost 连接丢失处理器
func (mc *MQTTConnector) onConnectionLost(client mqtt.Client, err error) {
	mc.mutex.Lock()
	mc.isConnected = false
	mc.stats.ConnectionStatus = "reconnecting"
	mc.recordErrorLocked(fmt.Sprintf("MQTT连接丢失: %v", err))
	mc.mutex.Unlock()

	mc.logger.Printf("MQTT连接丢失: %v", err)

	// 触发重连通知
	select {
	case mc.reconnectChan <- true:
	default:
	}
}

// recordErrorLocked 记录错误信息，调用方必须持有mutex
func (mc *MQTTConnector) recordErrorLocked(errMsg string) {
	mc.stats.ErrorCount++
	mc.stats.LastError = errMsg
	mc.stats.LastActivity = time.Now()
}

// IsConnected 检查连接状态
func (mc *MQTTConnector) IsConnected() bool {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	return mc.isConnected
}

// GetStatistics 获取连接器统计信息
func (mc *MQTTConnector) GetStatistics() models.ConnectorStatistics {
	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	return mc.stats
}

// WaitForReconnect 等待重连信号
func (mc *MQTTConnector) WaitForReconnect() <-chan bool {
	return mc.reconnectChan
}
