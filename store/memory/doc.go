// Package memory is an in-process implementation of the goGuard credential,
// password history and audit stores. It backs tests and local development;
// data is lost on restart.
package memory
