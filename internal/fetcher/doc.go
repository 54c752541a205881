// Package fetcher is the only component in the service that fetches
// packages over the network. The cache, the resource loader and the
// sandbox reach package content exclusively through the Fetcher
// interface it implements, so tests elsewhere substitute a fake. The
// Apollo shim (internal/apollo) issues its own GraphQL requests and does
// not go through this package.
package fetcher
