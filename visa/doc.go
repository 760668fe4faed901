// Package visa provides the instrument resource layer: VISA-style resource
// descriptors, a driver registry for the supported interface classes, and a
// ResourceManager that enumerates attached instruments and opens exclusive
// sessions to them.
//
// Resource descriptors follow the conventional VISA addressing syntax, with
// double-colon separated parts and a leading interface class:
//
//   - USB0::0x0699::0x0522::C012345::INSTR
//   - ASRL/dev/ttyUSB0::INSTR
//   - TCPIP0::192.168.1.20::5025::SOCKET
//
// Drivers register themselves per interface class, typically from an init
// function, so importing a driver package is enough to make its instruments
// discoverable:
//
//	import (
//	    "github.com/visagate/visagate/visa"
//	    _ "github.com/visagate/visagate/visa/usbtmc"
//	)
//
//	rm, err := visa.NewResourceManager()
//	rsrcs, err := rm.FindResources(ctx, "?*INSTR")
//
// Enumeration order is deterministic: drivers enumerate in registration order,
// and each driver reports its resources in a driver-local stable order.
package visa
