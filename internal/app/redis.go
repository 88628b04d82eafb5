package app

import (
	"paypal-gateway/internal/common/logging"
	"paypal-gateway/internal/redis"
)

func (app *App) initializeRedis() error {
	if app.Config.RedisAddress == "" {
		app.Logger.Info("Redis: Not configured (token cache and registration lock are process local)")
		return nil
	}

	redisClient, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDB,
		PoolSize: app.Config.RedisPoolSize,
	})
	if err != nil {
		return err
	}

	app.RedisClient = redisClient
	app.Logger.Info("Redis: Connected", logging.Field{Key: "address", Value: app.Config.RedisAddress})
	app.Logger.Info("Distributed Locks: Enabled")

	return nil
}
