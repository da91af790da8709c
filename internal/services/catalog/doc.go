// Package catalog wraps the catalog-publish and cache-refresh endpoints.
// Responses are used only for aggregate progress counts.
package catalog
