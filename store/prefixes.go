package store

// Storage prefixes
const (
	BlockPrefix     = "bl-" // bl-<hash hex> -> block
	HeightPrefix    = "bh-" // bh-<height, 8 bytes big endian> -> hash
	ValidatorSetKey = "vd-set"
	TipKey          = "tip"
	PendingKey      = "tx-pending"
)
