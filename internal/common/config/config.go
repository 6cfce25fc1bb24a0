package config

// RedisConfig Redis连接配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled 是否配置了 Redis 地址
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// MQTTConfig MQTT连接配置
type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	QoS      byte   `mapstructure:"qos"`
}

// Enabled 是否配置了 MQTT Broker
func (c *MQTTConfig) Enabled() bool {
	return c.Broker != ""
}
