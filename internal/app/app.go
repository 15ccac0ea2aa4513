package app

import (
	"context"
	"errors"
	"net/url"
	"time"

	"uvsense-go/bus"
	"uvsense-go/internal/app/config"
	"uvsense-go/internal/mqtt"
	cfgsvc "uvsense-go/services/config"
	"uvsense-go/services/hal"
	"uvsense-go/services/hal/platform"
	"uvsense-go/services/heartbeat"
	"uvsense-go/types"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// halReadyTimeout bounds how long init waits for the HAL to apply its config.
const halReadyTimeout = 5 * time.Second

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Webserver.URL parameter
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// buses are the opened I²C buses handed to the HAL
	buses *platform.Factory

	// bus carries HAL state, values and control requests
	bus  *bus.Bus
	conn *bus.Connection

	metrics *metrics
	data    *store

	cancel context.CancelFunc
	done   chan struct{}
}

// New checks the Web server URL and initialize the main app structure
func New(config *config.Config) (*App, error) {
	u, err := url.Parse(config.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", config.Webserver.URL, err.Error())
		return &App{}, err
	}

	return &App{
		config:    config,
		urlParsed: u,

		web:     fiber.New(fiber.Config{DisableStartupMessage: true}),
		mqtt:    mqtt.New(64),
		metrics: newMetrics(),
		data:    newStore(),
		done:    make(chan struct{}),
	}, nil
}

// Run starts the application. It returns once everything is started; the
// services stop when ctx is cancelled or Close is called.
func (app *App) Run(ctx context.Context) error {
	ctx, app.cancel = context.WithCancel(ctx)
	if err := app.init(ctx); err != nil {
		return err
	}

	go app.mqtt.Service(ctx)
	go app.runWebServer()

	return nil
}

// init opens the buses, starts the HAL and the forwarder, and connects mqtt.
// The services run until ctx is done; app.cancel must cancel it.
func (app *App) init(ctx context.Context) (err error) {
	if app.buses, err = platform.NewI2CFactory(app.config.Buses); err != nil {
		debug.ErrorLog.Printf("can't open i2c buses: %v", err)
		return err
	}

	app.bus = bus.NewBus(64)
	app.conn = app.bus.NewConnection("app")
	values := app.conn.Subscribe(bus.T("hal", "capability", "+", "+", "value"))
	states := app.conn.Subscribe(bus.T("hal", "capability", "+", "+", "state"))
	halState := app.conn.Subscribe(bus.T("hal", "state"))
	beats := app.conn.Subscribe(heartbeat.Topic)
	settled := app.conn.Subscribe(bus.T("hal", "state"))
	defer app.conn.Unsubscribe(settled)

	go hal.Run(ctx, app.bus.NewConnection("hal"), app.buses)
	go app.forward(ctx, values, states, halState, beats)

	sections := map[string]any{
		"hal":       app.config.HALConfig(),
		"heartbeat": app.config.Heartbeat,
	}
	if err = cfgsvc.NewService(sections).Publish(app.conn); err != nil {
		return err
	}
	var hb heartbeat.Service
	if err = hb.Start(ctx, app.bus.NewConnection("heartbeat")); err != nil {
		return err
	}
	if err = waitHALSettled(ctx, settled, halReadyTimeout); err != nil {
		debug.ErrorLog.Printf("hal: %v", err)
		return err
	}
	debug.InfoLog.Printf("hal configured with %d device(s) on %d bus(es)", len(app.config.Devices), len(app.config.Buses))

	if err = app.mqtt.Connect(app.config.MQTT.Connection, app.config.MQTT.ClientID); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	// initDefaultRoutes should be always called last
	app.initDefaultRoutes()

	return nil
}

// Close stops the HAL and the web server and releases the buses.
func (app *App) Close() error {
	if app.cancel != nil {
		app.cancel()
	}
	// conn is set just before the forwarder starts.
	if app.conn != nil {
		<-app.done
	}
	if app.web != nil {
		_ = app.web.Shutdown()
	}
	if app.mqtt != nil {
		_ = app.mqtt.Disconnect()
	}
	if app.buses != nil {
		return app.buses.Close()
	}
	return nil
}

// waitHALSettled blocks until the HAL has left its idle state, so that
// capability control topics exist before the web server accepts requests.
func waitHALSettled(ctx context.Context, sub *bus.Subscription, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case m, ok := <-sub.Channel():
			if !ok {
				return errors.New("hal state subscription closed")
			}
			st, ok := m.Payload.(types.HALState)
			if !ok || st.Level == "idle" {
				continue
			}
			if st.Level == "error" {
				debug.ErrorLog.Printf("hal %s: %s", st.Status, st.Error)
			}
			return nil
		case <-deadline.C:
			return errors.New("timed out waiting for hal to apply config")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
