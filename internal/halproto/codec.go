package halproto

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers, matching api/proto/halremote.proto.
const (
	containerFieldType    = 1
	containerFieldComp    = 2
	containerFieldPin     = 3
	containerFieldNote    = 4
	containerFieldPparams = 5

	componentFieldName = 1
	componentFieldPin  = 2

	pinFieldName     = 1
	pinFieldHandle   = 2
	pinFieldType     = 3
	pinFieldDir      = 4
	pinFieldHalfloat = 5
	pinFieldHalbit   = 6
	pinFieldHals32   = 7
	pinFieldHalu32   = 8

	pparamsFieldKeepaliveTimer = 1
)

// Marshal encodes the container into a single wire frame.
func Marshal(c *Container) []byte {
	var buf []byte

	buf = protowire.AppendTag(buf, containerFieldType, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(c.Type))

	for _, comp := range c.Comp {
		buf = protowire.AppendTag(buf, containerFieldComp, protowire.BytesType)
		buf = protowire.AppendBytes(buf, marshalComponent(comp))
	}
	for _, pin := range c.Pin {
		buf = protowire.AppendTag(buf, containerFieldPin, protowire.BytesType)
		buf = protowire.AppendBytes(buf, marshalPin(pin))
	}
	for _, note := range c.Note {
		buf = protowire.AppendTag(buf, containerFieldNote, protowire.BytesType)
		buf = protowire.AppendString(buf, note)
	}
	if c.Pparams != nil {
		buf = protowire.AppendTag(buf, containerFieldPparams, protowire.BytesType)
		buf = protowire.AppendBytes(buf, marshalPparams(c.Pparams))
	}

	return buf
}

func marshalComponent(comp *Component) []byte {
	var buf []byte
	if comp.Name != "" {
		buf = protowire.AppendTag(buf, componentFieldName, protowire.BytesType)
		buf = protowire.AppendString(buf, comp.Name)
	}
	for _, pin := range comp.Pin {
		buf = protowire.AppendTag(buf, componentFieldPin, protowire.BytesType)
		buf = protowire.AppendBytes(buf, marshalPin(pin))
	}
	return buf
}

func marshalPin(pin *Pin) []byte {
	var buf []byte
	if pin.Name != "" {
		buf = protowire.AppendTag(buf, pinFieldName, protowire.BytesType)
		buf = protowire.AppendString(buf, pin.Name)
	}
	if pin.hasHandle {
		buf = protowire.AppendTag(buf, pinFieldHandle, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(pin.Handle))
	}
	if pin.Type != 0 {
		buf = protowire.AppendTag(buf, pinFieldType, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(pin.Type))
	}
	if pin.Dir != 0 {
		buf = protowire.AppendTag(buf, pinFieldDir, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(pin.Dir))
	}
	if pin.HalFloat != nil {
		buf = protowire.AppendTag(buf, pinFieldHalfloat, protowire.Fixed64Type)
		buf = protowire.AppendFixed64(buf, math.Float64bits(*pin.HalFloat))
	}
	if pin.HalBit != nil {
		buf = protowire.AppendTag(buf, pinFieldHalbit, protowire.VarintType)
		var v uint64
		if *pin.HalBit {
			v = 1
		}
		buf = protowire.AppendVarint(buf, v)
	}
	if pin.HalS32 != nil {
		buf = protowire.AppendTag(buf, pinFieldHals32, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(int64(*pin.HalS32)))
	}
	if pin.HalU32 != nil {
		buf = protowire.AppendTag(buf, pinFieldHalu32, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(*pin.HalU32))
	}
	return buf
}

func marshalPparams(pp *ProtocolParameters) []byte {
	var buf []byte
	buf = protowire.AppendTag(buf, pparamsFieldKeepaliveTimer, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(pp.KeepaliveTimer))
	return buf
}

// Unmarshal decodes a wire frame into a container. Unknown fields are
// skipped so newer servers stay compatible.
func Unmarshal(data []byte) (*Container, error) {
	c := &Container{}
	sawType := false

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("container: invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == containerFieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("container: type: %w", protowire.ParseError(n))
			}
			c.Type = ContainerType(v)
			sawType = true
			data = data[n:]

		case num == containerFieldComp && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("container: comp: %w", protowire.ParseError(n))
			}
			comp, err := unmarshalComponent(raw)
			if err != nil {
				return nil, err
			}
			c.Comp = append(c.Comp, comp)
			data = data[n:]

		case num == containerFieldPin && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("container: pin: %w", protowire.ParseError(n))
			}
			pin, err := unmarshalPin(raw)
			if err != nil {
				return nil, err
			}
			c.Pin = append(c.Pin, pin)
			data = data[n:]

		case num == containerFieldNote && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("container: note: %w", protowire.ParseError(n))
			}
			c.Note = append(c.Note, s)
			data = data[n:]

		case num == containerFieldPparams && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("container: pparams: %w", protowire.ParseError(n))
			}
			pp, err := unmarshalPparams(raw)
			if err != nil {
				return nil, err
			}
			c.Pparams = pp
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("container: field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	if !sawType {
		return nil, fmt.Errorf("container: missing required type field")
	}
	return c, nil
}

func unmarshalComponent(data []byte) (*Component, error) {
	comp := &Component{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("component: invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == componentFieldName && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("component: name: %w", protowire.ParseError(n))
			}
			comp.Name = s
			data = data[n:]

		case num == componentFieldPin && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("component: pin: %w", protowire.ParseError(n))
			}
			pin, err := unmarshalPin(raw)
			if err != nil {
				return nil, err
			}
			comp.Pin = append(comp.Pin, pin)
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("component: field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return comp, nil
}

func unmarshalPin(data []byte) (*Pin, error) {
	pin := &Pin{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pin: invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == pinFieldName && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, fmt.Errorf("pin: name: %w", protowire.ParseError(n))
			}
			pin.Name = s
			data = data[n:]

		case num == pinFieldHandle && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("pin: handle: %w", protowire.ParseError(n))
			}
			pin.SetHandle(uint32(v))
			data = data[n:]

		case num == pinFieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("pin: type: %w", protowire.ParseError(n))
			}
			pin.Type = ValueType(v)
			data = data[n:]

		case num == pinFieldDir && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("pin: dir: %w", protowire.ParseError(n))
			}
			pin.Dir = PinDirection(v)
			data = data[n:]

		case num == pinFieldHalfloat && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return nil, fmt.Errorf("pin: halfloat: %w", protowire.ParseError(n))
			}
			pin.HalFloat = Float64(math.Float64frombits(v))
			data = data[n:]

		case num == pinFieldHalbit && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("pin: halbit: %w", protowire.ParseError(n))
			}
			pin.HalBit = Bool(v != 0)
			data = data[n:]

		case num == pinFieldHals32 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("pin: hals32: %w", protowire.ParseError(n))
			}
			pin.HalS32 = Int32(int32(v))
			data = data[n:]

		case num == pinFieldHalu32 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("pin: halu32: %w", protowire.ParseError(n))
			}
			pin.HalU32 = Uint32(uint32(v))
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("pin: field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return pin, nil
}

func unmarshalPparams(data []byte) (*ProtocolParameters, error) {
	pp := &ProtocolParameters{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("pparams: invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == pparamsFieldKeepaliveTimer && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("pparams: keepalive_timer: %w", protowire.ParseError(n))
			}
			pp.KeepaliveTimer = uint32(v)
			data = data[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("pparams: field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return pp, nil
}
