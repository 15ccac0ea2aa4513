package app

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// HandleHealth returns data about the health of myself, including the HAL
// level, the last heartbeat and whether mqtt is connected.
func (app *App) HandleHealth() fiber.Handler {
	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}

	host, _ := os.Hostname()

	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request health")

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		hal, _ := app.data.snapshot()
		hb := app.data.heartbeat()

		healthData := struct {
			NumGoroutines   int
			HeapAllocatedMB uint64
			SysMemoryMB     uint64
			Version         string
			ProgLang        string
			HostName        string
			Time            string
			HAL             string
			MQTTConnected   bool
			UptimeS         int64
			HeartbeatSeq    uint64
		}{
			NumGoroutines:   runtime.NumGoroutine(),
			HeapAllocatedMB: bToMb(m.Alloc),
			SysMemoryMB:     bToMb(m.Sys),
			ProgLang:        runtime.Version(),
			Version:         VERSION,
			HostName:        host,
			Time:            time.Now().Format(time.RFC3339),
			HAL:             hal.Level,
			MQTTConnected:   app.mqtt.Connected(),
			UptimeS:         hb.UptimeS,
			HeartbeatSeq:    hb.Seq,
		}

		status := http.StatusOK
		if hal.Level == "error" {
			status = http.StatusServiceUnavailable
		}
		ctx.Status(status)
		return ctx.JSON(healthData)
	}
}
