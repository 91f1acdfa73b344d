// Package migrations embeds the goose SQL migrations for the control-plane
// store and for tenant databases.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed controlplane/*.sql
var controlplaneFS embed.FS

//go:embed tenant/*.sql
var tenantFS embed.FS

func ControlPlane() fs.FS {
	sub, err := fs.Sub(controlplaneFS, "controlplane")
	if err != nil {
		panic(err)
	}
	return sub
}

func Tenant() fs.FS {
	sub, err := fs.Sub(tenantFS, "tenant")
	if err != nil {
		panic(err)
	}
	return sub
}
