// Package web holds the static pages served next to the webhook.
package web

import _ "embed"

// DashboardHTML is the bookings dashboard. It reads /api/bookings in the browser.
//
//go:embed dashboard.html
var DashboardHTML []byte
