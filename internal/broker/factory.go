package broker

import (
	"chronicle/internal/config"
	"chronicle/internal/logger"
)

func NewProducer(cfg config.BrokerConfig, log logger.Logger) Producer {
	return NewKafkaProducer(cfg.Kafka, log)
}

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) Consumer {
	return NewKafkaConsumer(cfg.Kafka, log)
}
