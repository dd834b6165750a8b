/*
 * @module service/models/connector_models
 * @description 客户端连接器相关模型定义，包含Kafka、MQTT连接器的配置和消息结构
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/greenroute_event_impl.md
 * @stateFlow 模型定义 -> 连接器配置 -> 运行事件广播
 * @rules 确保连接器模型的一致性和完整性
 * @dependencies time
 * @refs client/connectors
 */

package models

import (
	"time"
)

// Kafka相关模型

// KafkaConfig Kafka配置信息
type KafkaConfig struct {
	Brokers           []string        `json:"brokers"`            // Kafka broker地址列表
	GroupID           string          `json:"group_id"`           // 消费者组ID
	Topics            []string        `json:"topics"`             // 订阅的主题列表
	SecurityConfig    *SecurityConfig `json:"security_config"`    // 安全配置
	ConnectionTimeout time.Duration   `json:"connection_timeout"` // 连接超时时间
	RetryAttempts     int             `json:"retry_attempts"`     // 重试次数
	BatchSize         int             `json:"batch_size"`         // 生产批量大小
	BatchTimeout      time.Duration   `json:"batch_timeout"`      // 生产批量超时时间
	RequiredAcks      int             `json:"required_acks"`      // 确认模式
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	EnableSASL bool   `json:"enable_sasl"` // 是否启用SASL认证
	Username   string `json:"username"`    // SASL用户名
	Password   string `json:"password"`    // SASL密码
	EnableTLS  bool   `json:"enable_tls"`  // 是否启用TLS
	CertFile   string `json:"cert_file"`   // TLS证书文件
	KeyFile    string `json:"key_file"`    // TLS密钥文件
	CAFile     string `json:"ca_file"`     // CA证书文件
}

// KafkaMessage Kafka消息结构体
type KafkaMessage struct {
	Topic     string            `json:"topic"`     // 主题
	Key       string            `json:"key"`       // 消息键
	Value     interface{}       `json:"value"`     // 消息值
	Headers   map[string]string `json:"headers"`   // 消息头
	Partition int               `json:"partition"` // 分区
	Offset    int64             `json:"offset"`    // 偏移量
	Timestamp time.Time         `json:"timestamp"` // 时间戳
}

// MQTT相关模型

// MQTTConfig MQTT配置信息
type MQTTConfig struct {
	Broker               string        `json:"broker"`                 // MQTT broker地址
	ClientID             string        `json:"client_id"`              // 客户端ID
	Username             string        `json:"username"`               // 用户名
	Password             string        `json:"password"`               // 密码
	CleanSession         bool          `json:"clean_session"`          // 清理会话
	KeepAlive            time.Duration `json:"keep_alive"`             // 保持连接时间
	Topics               []string      `json:"topics"`                 // 订阅主题列表
	QoS                  byte          `json:"qos"`                    // 发布QoS级别
	AutoReconnect        bool          `json:"auto_reconnect"`         // 自动重连
	MaxReconnectInterval time.Duration `json:"max_reconnect_interval"` // 最大重连间隔
}

// MQTTMessage MQTT消息结构体
type MQTTMessage struct {
	Topic     string    `json:"topic"`      // 主题
	Payload   []byte    `json:"payload"`    // 消息载荷
	QoS       byte      `json:"qos"`        // 服务质量
	Retained  bool      `json:"retained"`   // 是否保留
	MessageID uint16    `json:"message_id"` // 消息ID
	Timestamp time.Time `json:"timestamp"`  // 时间戳
}

// 通用连接器统计信息

// ConnectorStatistics 连接器统计信息
type ConnectorStatistics struct {
	ConnectorType    string    `json:"connector_type"`    // 连接器类型
	ConnectionStatus string    `json:"connection_status"` // 连接状态
	MessagesProduced int64     `json:"messages_produced"` // 已生产消息数
	ErrorCount       int64     `json:"error_count"`       // 错误计数
	LastError        string    `json:"last_error"`        // 最后错误
	LastActivity     time.Time `json:"last_activity"`     // 最后活动时间
}
