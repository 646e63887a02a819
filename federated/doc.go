// Package federated verifies identity tokens issued by external providers
// and turns them into identity.FederatedIdentity values.
package federated
