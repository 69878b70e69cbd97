// Command voicedriver runs the mixing/RTP-egress core as a standalone fx
// application, wiring config loading, logging, and the driver module.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voice-driver/internal/config"
	"github.com/Raikerian/go-voice-driver/internal/driver"
	"github.com/Raikerian/go-voice-driver/pkg/infrastructure"
)

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	app := fx.New(
		config.Module,
		driver.Module,
		fx.Supply(configPath),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return infrastructure.NewFxLoggerAdapter(logger)
		}),
		fx.Invoke(func(*driver.Mixer) {}),
	)

	app.Run()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sigCh:
		fmt.Printf("received signal: %s, initiating shutdown\n", s)
	case <-app.Done():
		fmt.Println("application shutdown initiated by fx")
	}

	fmt.Println("voicedriver has shut down")
}
