package domain

// KeyPrefix namespaces every key fetchr writes to the database.
const KeyPrefix = "fetchr:"
