// Package alerts turns decision results into alert notifications and
// delivers them to Teams, Slack, or generic HTTP webhooks.
//
// A lot fires when its alert level reaches the configured minimum level.
// Repeat notifications for the same lot are suppressed for the cooldown
// unless the level escalates. A firing lot resolves when a later result
// drops back below the minimum level.
package alerts
