// Package mailer delivers goGuard password reset links over SMTP with gomail.
package mailer
