package config

// RedisConfig configures the ingestion event stream. An empty Addr disables publishing.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	Stream   string `yaml:"stream" envconfig:"REDIS_STREAM"`
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}
