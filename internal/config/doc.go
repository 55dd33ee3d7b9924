// Package config defines the installer's configuration surface.
//
// [Settings] is read from environment variables by [LoadSettings] and then
// adjusted by CLI flags. [ValuesDocument] is the optional caller-supplied
// chart values file; the resolvers read user-declared settings from it.
// [Timeouts] holds the bounded waits used by the orchestrator.
package config
