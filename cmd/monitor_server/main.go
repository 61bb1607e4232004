package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dropalert/internal/core"
	monitorserver "dropalert/internal/monitor_server"
)

func main() {
	// обработка возможной паники
	defer func() {
		if r := recover(); r != nil {
			fmt.Println("Поймали панику:", r)
		}
	}()

	// Создаем корневой контекст
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализируем общие зависимости
	deps, err := core.InitDependencies(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize dependencies: %v", err)
	}

	// Запускаем фоновые компоненты: очередь отправки, мониторинг, health-чеки
	if err := deps.Start(ctx); err != nil {
		log.Fatalf("Failed to start background components: %v", err)
	}

	// Создаем HTTP-сервер дашборда
	server, err := monitorserver.NewMonitorServer(deps.Config.Server, deps.Handler)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// создаём канал, который будет реагировать на системные сигналы
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Запуск сервера
	go func() {
		fmt.Printf("🚀 HTTP сервер мониторинга дропов запускается на %s\n", deps.Config.Server.Addr())
		if err := server.Run(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Ожидание сигнала
	<-sigChan
	fmt.Println("\n🛑 Остановка сервиса мониторинга дропов...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, deps.Config.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Остановка сервера
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	// Остановка фоновых компонентов и закрытие соединений
	deps.Shutdown()

	fmt.Println("👋 Сервис мониторинга дропов остановлен")
}
