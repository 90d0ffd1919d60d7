package broker

import (
	"context"

	"planguard/pkg/models"
)

type Producer interface {
	Publish(ctx context.Context, topic string, event models.PackEvent) error
	Close() error
}
