package models

// Handle identifies one live transport connection. It is assigned by the
// transport layer and only referenced by the registries.
type Handle string
