package config

const (
	StoreTypeMemory = "memory"
	StoreTypeRedis  = "redis"
)

type StoreConfig interface {
	GetStoreType() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisKeyPrefix() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetStoreType() string {
	return GetEnv("AUTHORIZED_CLIENT_STORE", StoreTypeMemory)
}

func (Store) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Store) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Store) GetRedisDB() int {
	return GetIntEnv("REDIS_DB", 0)
}

func (Store) GetRedisKeyPrefix() string {
	return GetEnv("REDIS_KEY_PREFIX", "obo:authorized-client:")
}
