package bridge

import (
	"sync/atomic"
)

// ServerMetrics contains atomic metrics for a bridge server.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type ServerMetrics struct {
	// ConnAcceptedCount indicates the number of client connections accepted.
	ConnAcceptedCount atomic.Uint64
	// ConnServedCount indicates the number of client connections handled to completion.
	ConnServedCount atomic.Uint64
	// ConnDroppedCount indicates the number of client connections that ended
	// before a reply could be delivered.
	ConnDroppedCount atomic.Uint64

	// QueryCount indicates the number of query commands forwarded to the instrument.
	QueryCount atomic.Uint64
	// CommandCount indicates the number of non-query commands forwarded to the instrument.
	CommandCount atomic.Uint64

	// WriteErrCount indicates the number of instrument write failures.
	WriteErrCount atomic.Uint64
	// ReadErrCount indicates the number of instrument read failures.
	ReadErrCount atomic.Uint64
}

func (m *ServerMetrics) incConnAcceptedCount() {
	m.ConnAcceptedCount.Add(1)
}

func (m *ServerMetrics) incConnServedCount() {
	m.ConnServedCount.Add(1)
}

func (m *ServerMetrics) incConnDroppedCount() {
	m.ConnDroppedCount.Add(1)
}

func (m *ServerMetrics) incQueryCount() {
	m.QueryCount.Add(1)
}

func (m *ServerMetrics) incCommandCount() {
	m.CommandCount.Add(1)
}

func (m *ServerMetrics) incWriteErrCount() {
	m.WriteErrCount.Add(1)
}

func (m *ServerMetrics) incReadErrCount() {
	m.ReadErrCount.Add(1)
}
