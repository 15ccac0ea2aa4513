package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"uvsense-go/bus"
	"uvsense-go/types"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// controlTimeout bounds a control request to the HAL.
const controlTimeout = 2 * time.Second

// runWebServer starts the applications web server and listens for web requests.
//
//	It's designed to run in a separate go function to not block the main go function.
//	e.g.: go runWebServer()
//	See app.Run()
func (app *App) runWebServer() {
	if err := app.web.Listen(app.urlParsed.Host); err != nil {
		debug.ErrorLog.Print(err)
	}
}

// HandleData returns the HAL state and the latest value of every capability.
func (app *App) HandleData() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request data")

		st, caps := app.data.snapshot()
		return ctx.JSON(fiber.Map{
			"hal":          st,
			"capabilities": caps,
		})
	}
}

// HandleControl forwards POST /control/:kind/:id/:method to the HAL and
// returns its reply. The request body, if any, is passed as JSON payload.
func (app *App) HandleControl() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		kind, method := ctx.Params("kind"), ctx.Params("method")
		id, err := strconv.Atoi(ctx.Params("id"))
		if err != nil {
			return ctx.Status(http.StatusBadRequest).JSON(types.Reply{Error: "invalid_topic"})
		}
		debug.InfoLog.Printf("web request control %s/%d/%s", kind, id, method)

		var payload any
		if body := ctx.Body(); len(body) > 0 {
			if err := json.Unmarshal(body, &payload); err != nil {
				return ctx.Status(http.StatusBadRequest).JSON(types.Reply{Error: "invalid_payload"})
			}
		}

		c, cancel := context.WithTimeout(ctx.UserContext(), controlTimeout)
		defer cancel()
		msg, err := app.conn.RequestWait(c,
			app.conn.NewMessage(bus.T("hal", "capability", kind, id, "control", method), payload, false))
		if err != nil {
			return ctx.Status(http.StatusGatewayTimeout).JSON(types.Reply{Error: "timeout"})
		}
		reply, _ := msg.Payload.(types.Reply)
		if !reply.OK {
			ctx.Status(http.StatusUnprocessableEntity)
		}
		return ctx.JSON(reply)
	}
}
