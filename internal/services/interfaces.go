package services

import (
	"context"

	"github.com/AndrewYakovlev/aso-store/internal/worker"
)

// SMSSender определяет интерфейс для SMS сервиса
type SMSSender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// TaskSubmitter очередь фоновых задач (worker.Dispatcher)
type TaskSubmitter interface {
	Submit(name string, task worker.Task) bool
}
