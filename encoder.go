package tezbridge

// Encoder defines the interface for message serialization and deserialization.
// Implementations include JSON for the line protocol and MessagePack, CBOR
// and Protocol Buffers for the NATS transport.
type Encoder interface {
	// Encode serializes v into bytes.
	Encode(v any) ([]byte, error)

	// Decode deserializes data into v.
	Decode(data []byte, v any) error
}
