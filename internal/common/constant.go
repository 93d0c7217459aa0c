// Package common contains shared constants and the error taxonomy used across
// the payslip service layers.
package common

// AuthorizationHeaderName carries the identity provider's bearer token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in AuthorizationHeaderName.
const BearerPrefix = "Bearer "

// ServiceName is reported by health endpoints and used as a log attribute.
const ServiceName = "payslip-service"
