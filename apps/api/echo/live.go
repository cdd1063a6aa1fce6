package echoapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true }, // auth is carried by the JWT
	}
	livePushInterval = 2 * time.Second
)

// sessionLive upgrades to a websocket and pushes the session's check-in
// ledger to the teacher's dashboard until the session expires or the client
// disconnects.
func (api *attendanceApi) sessionLive(ctx echo.Context) error {
	caller, err := getContextCaller(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()

	// authorization happens before the upgrade
	view, err := api.svc.GetSession(reqCtx, caller, ctx.Param("id"))
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection")
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(view); err != nil {
		return nil // client gone
	}

	ticker := time.NewTicker(livePushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-reqCtx.Done():
			return nil
		case <-ticker.C:
			view, err = api.svc.GetSession(reqCtx, caller, view.ID)
			if err != nil {
				api.log.Error("stopping live session feed", err)
				return nil
			}
			if err := conn.WriteJSON(view); err != nil {
				return nil // client gone
			}
			if !view.IsActive() {
				return nil
			}
		}
	}
}
