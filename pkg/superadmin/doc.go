// Package superadmin gates cross-tenant operator endpoints behind a
// feature flag and an email allowlist.
//
// The flag is a kill switch: when it is off every request is rejected,
// including requests from allowlisted emails. Settings come from a Source
// and are read per request. StaticSource holds settings loaded from the
// environment at startup. FileSource reads a YAML file and can hot-reload
// it with Watch.
package superadmin
