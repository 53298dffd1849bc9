// Package gateway implements the fleet collaborator contracts over the
// mail admin gateway's HTTP/JSON API. One Client serves all stores; node
// topology stays with the static inventory in pkg/fleet.
package gateway
