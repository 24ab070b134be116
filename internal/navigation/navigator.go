// Package navigation names the routes of the application and the contract
// screens use to move between them.
package navigation

import (
	"context"
	"errors"

	"github.com/AkinduIB/GreenGuard/pkg/models"
)

// Route names a screen.
type Route string

const (
	RouteHome   Route = "Home"
	RouteResult Route = "Result"
	// RouteCamera is reserved for camera capture, which is not built yet.
	RouteCamera Route = "Camera"
)

// ErrRouteNotImplemented is returned for routes without a screen.
var ErrRouteNotImplemented = errors.New("route not implemented")

// Navigator pushes and pops screens.
type Navigator interface {
	// Navigate pushes the route with params and returns the id of the new
	// screen.
	Navigate(ctx context.Context, route Route, params models.ResultParams) (string, error)
	// Back tears the screen down and returns to Home.
	Back(ctx context.Context, id string) error
}
