// Package scraper polls sensor gateways that expose logged temperatures in
// the Prometheus text format and turns each sample into a TemperatureReading.
//
// A gateway publishes one gauge series per monitored lot:
//
//	coldchain_temperature_celsius{entity_id="lot-42"} 5.3 1767225600000
//
// The entity_id label names the lot, the value is the temperature in °C and
// the optional timestamp is the logger's recording time. Samples without a
// timestamp are stamped with the scrape time.
//
// Authentication (mTLS, API key, bearer token, basic) is handled by the
// shared authRoundTripper in base.go; New() builds the *http.Client once per
// source.
package scraper
