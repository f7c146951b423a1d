// Package halproto implements the wire schema of the halrcmd and
// halrcomp services (api/proto/halremote.proto) on the protobuf wire
// format.
package halproto

// ContainerType discriminates the envelope payload.
type ContainerType int32

const (
	MsgPing                      ContainerType = 210
	MsgPingAcknowledge           ContainerType = 215
	MsgHalrcompBind              ContainerType = 256
	MsgHalrcompBindConfirm       ContainerType = 257
	MsgHalrcompBindReject        ContainerType = 258
	MsgHalrcompSet               ContainerType = 259
	MsgHalrcompSetReject         ContainerType = 260
	MsgHalrcompFullUpdate        ContainerType = 261
	MsgHalrcompIncrementalUpdate ContainerType = 262
	MsgHalrcommandError          ContainerType = 263
)

func (t ContainerType) String() string {
	switch t {
	case MsgPing:
		return "MT_PING"
	case MsgPingAcknowledge:
		return "MT_PING_ACKNOWLEDGE"
	case MsgHalrcompBind:
		return "MT_HALRCOMP_BIND"
	case MsgHalrcompBindConfirm:
		return "MT_HALRCOMP_BIND_CONFIRM"
	case MsgHalrcompBindReject:
		return "MT_HALRCOMP_BIND_REJECT"
	case MsgHalrcompSet:
		return "MT_HALRCOMP_SET"
	case MsgHalrcompSetReject:
		return "MT_HALRCOMP_SET_REJECT"
	case MsgHalrcompFullUpdate:
		return "MT_HALRCOMP_FULL_UPDATE"
	case MsgHalrcompIncrementalUpdate:
		return "MT_HALRCOMP_INCREMENTAL_UPDATE"
	case MsgHalrcommandError:
		return "MT_HALRCOMMAND_ERROR"
	}
	return "MT_UNKNOWN"
}

// ValueType tags the typed value field of a pin sub-message.
type ValueType int32

const (
	HalBit   ValueType = 1
	HalFloat ValueType = 2
	HalS32   ValueType = 3
	HalU32   ValueType = 4
)

func (t ValueType) String() string {
	switch t {
	case HalBit:
		return "HAL_BIT"
	case HalFloat:
		return "HAL_FLOAT"
	case HalS32:
		return "HAL_S32"
	case HalU32:
		return "HAL_U32"
	}
	return "HAL_UNKNOWN"
}

// PinDirection values follow the HAL conventions (IO = IN|OUT).
type PinDirection int32

const (
	HalIn  PinDirection = 16
	HalOut PinDirection = 32
	HalIO  PinDirection = 48
)

func (d PinDirection) String() string {
	switch d {
	case HalIn:
		return "HAL_IN"
	case HalOut:
		return "HAL_OUT"
	case HalIO:
		return "HAL_IO"
	}
	return "HAL_DIR_UNKNOWN"
}

// Pin is the pin sub-message. Exactly one of the four value pointers is
// expected to be set; which one is described by Type.
type Pin struct {
	Name     string
	Handle   uint32
	Type     ValueType
	Dir      PinDirection
	HalFloat *float64
	HalBit   *bool
	HalS32   *int32
	HalU32   *uint32

	hasHandle bool
}

// SetHandle records the server-assigned handle.
func (p *Pin) SetHandle(h uint32) {
	p.Handle = h
	p.hasHandle = true
}

// HasHandle reports whether the handle field was present on the wire
// (or set explicitly); handle 0 is a valid handle.
func (p *Pin) HasHandle() bool { return p.hasHandle }

// Component is the component sub-message carried by BIND and FULL_UPDATE.
type Component struct {
	Name string
	Pin  []*Pin
}

// ProtocolParameters carries server-dictated protocol settings.
type ProtocolParameters struct {
	KeepaliveTimer uint32 // ms
}

// Container is the single envelope exchanged on both channels.
type Container struct {
	Type    ContainerType
	Comp    []*Component
	Pin     []*Pin
	Note    []string
	Pparams *ProtocolParameters
}

// AddComp appends and returns a new component sub-message.
func (c *Container) AddComp() *Component {
	comp := &Component{}
	c.Comp = append(c.Comp, comp)
	return comp
}

// AddPin appends and returns a new top-level pin sub-message.
func (c *Container) AddPin() *Pin {
	pin := &Pin{}
	c.Pin = append(c.Pin, pin)
	return pin
}

// AddPin appends and returns a new pin sub-message of the component.
func (c *Component) AddPin() *Pin {
	pin := &Pin{}
	c.Pin = append(c.Pin, pin)
	return pin
}

func Float64(v float64) *float64 { return &v }
func Bool(v bool) *bool          { return &v }
func Int32(v int32) *int32       { return &v }
func Uint32(v uint32) *uint32    { return &v }
