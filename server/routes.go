package server

import "net/http"

const (
	RouteRegister  = "/register"
	RouteLogin     = "/login"
	RouteRefresh   = "/refresh"
	RouteLogout    = "/logout"
	RouteProtected = "/protected"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("POST "+RouteRegister, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// Example protected resource: requires a valid bearer access token
	s.RegisterRouteHandler("GET "+RouteProtected, ChainMiddleware(s.ProtectedHandler(), append(s.APIMiddleware(), s.RequireAuth())...))

	// Preflight requests never reach the method-specific patterns above;
	// CorsMiddleware answers them before this handler runs.
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.APIMiddleware()...))
}
