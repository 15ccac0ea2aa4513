package types

// ------------------------
// Capability addressing & kinds
// ------------------------

type Kind string

const (
	KindUVA     Kind = "uva"
	KindUVB     Kind = "uvb"
	KindUVIndex Kind = "uv_index"
	KindUVRaw   Kind = "uv_raw"
)

// UVKinds lists the capability kinds published by a UV sensor, in
// publication order.
var UVKinds = []Kind{KindUVA, KindUVB, KindUVIndex, KindUVRaw}

// CapabilityAddress identifies a public capability on the bus.
type CapabilityAddress struct {
	Kind Kind `json:"kind"`
	ID   int  `json:"id"`
}
