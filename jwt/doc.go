// Package jwt issues and verifies the two signed tokens goGuard hands to
// clients: the identity token carried in the authentication cookie, and the
// single-purpose password reset token embedded in reset links.
//
// Each token carries a purpose claim; a token minted for one purpose never
// parses as the other.
package jwt
