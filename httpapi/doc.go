// Package httpapi exposes goGuard.Engine as a JSON API on gin.
//
// Account routes run behind middleware.GinAuthenticate and
// middleware.GinSessionGuard. 2FA management and audit history also sit
// behind middleware.GinRequirePasswordChange. Error bodies carry only
// user-safe messages.
package httpapi
