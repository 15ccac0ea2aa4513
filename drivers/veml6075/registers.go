package veml6075

// 7-bit I2C address. The part has no address strap.
const Address = 0x10

// DeviceID is the value the DEVICE_ID register reports on genuine parts.
const DeviceID = 0x0026

// Register sub-addresses (16-bit word registers).
const (
	regConfig   = 0x00 // W
	regUVA      = 0x07 // R
	regUVB      = 0x09 // R
	regUVComp1  = 0x0A // R
	regUVComp2  = 0x0B // R
	regDeviceID = 0x0C // R
)

// CONFIG register bits.
const (
	bitShutdown    = 0b0000_0001
	bitTrigger     = 0b0000_0010
	bitActiveForce = 0b0000_0100
	bitHighDynamic = 0b0000_1000

	itShift = 4
	itMask  = 0b0111_0000
	// Clears the integration time field, keeps everything else.
	itKeep = 0b1000_1111
)

// Power-on state assumed by New: sensor shut down, everything else zero.
const configInitial = bitShutdown
