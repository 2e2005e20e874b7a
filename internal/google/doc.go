// Package google turns stored OAuth credentials into authenticated token
// sources for the Gmail API.
//
// An Authenticator resolves an account in the token store and then either
// reuses the stored access token, refreshes it with the stored refresh token,
// or runs an interactive authorization through an Authorizer. New and
// refreshed tokens are written back through the token store.
//
// The default Authorizer, LoopbackAuthorizer, implements the installed-app
// flow: it listens on a random loopback port, opens the browser at Google's
// consent page and exchanges the returned code using PKCE.
package google
