// Package delivery implements the delivery-lifecycle state machine for one
// (campaign, recipient) pair.
//
// The service layer consumes provider send outcomes, provider webhooks, and
// inbound tracking beacons, and produces the persisted DeliveryRecord state.
// Status transitions are upgrade-only and engagement timestamps are
// append-only; the pure transition logic lives in state.go and is exercised
// directly by unit tests, decoupled from persistence.
//
// The service depends on the Repository interface defined in this package
// and should never import from handler or worker packages. The Postgres
// implementation lives in repository/postgres/.
package delivery
