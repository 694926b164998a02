// Package api holds the published OpenAPI description of the ledger service.
package api

import _ "embed"

//go:embed openapi.yaml
var Spec []byte
